package bridge

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"go-knowledge/internal/model"
)

// RegisterRoutes 挂载 POST /ipc/:channel，请求体为位置参数 JSON 数组
func (b *Bridge) RegisterRoutes(r gin.IRouter) {
	r.POST("/ipc/:channel", b.serveIPC)
	r.GET("/ipc", b.listChannels)
}

func (b *Bridge) serveIPC(c *gin.Context) {
	channel := c.Param("channel")
	if !b.Registered(channel) {
		c.JSON(http.StatusNotFound, model.Fail[any](errors.New("no handler registered for '"+channel+"'")))
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, model.Fail[any](err))
		return
	}
	var args []json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			c.JSON(http.StatusBadRequest, model.Fail[any](errors.New("request body must be a JSON array of arguments")))
			return
		}
	}

	c.JSON(http.StatusOK, b.Invoke(c.Request.Context(), channel, args))
}

func (b *Bridge) listChannels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": b.Channels()})
}
