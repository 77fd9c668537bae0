package model

// AppConfig 应用配置，对应磁盘上的整个 JSON 文档
type AppConfig struct {
	General   GeneralSettings  `json:"general"`
	Display   DisplaySettings  `json:"display"`
	Models    ModelSettings    `json:"models"`
	Search    SearchSettings   `json:"search"`
	Shortcuts ShortcutSettings `json:"shortcuts"`
	Document  DocumentSettings `json:"document"`
	Data      DataSettings     `json:"data"`
	MCP       MCPSettings      `json:"mcp"`
	Memory    MemorySettings   `json:"memory"`
}

// 顶层分区键
const (
	SectionGeneral   = "general"
	SectionDisplay   = "display"
	SectionModels    = "models"
	SectionSearch    = "search"
	SectionShortcuts = "shortcuts"
	SectionDocument  = "document"
	SectionData      = "data"
	SectionMCP       = "mcp"
	SectionMemory    = "memory"
)

// Sections lists every top-level section in schema order.
var Sections = []string{
	SectionGeneral,
	SectionDisplay,
	SectionModels,
	SectionSearch,
	SectionShortcuts,
	SectionDocument,
	SectionData,
	SectionMCP,
	SectionMemory,
}

// GeneralSettings 通用设置
type GeneralSettings struct {
	Language             string `json:"language"`
	Theme                string `json:"theme"` // light, dark, auto
	ProxyMode            string `json:"proxyMode"`
	SpellCheck           bool   `json:"spellCheck"`
	HardwareAcceleration bool   `json:"hardwareAcceleration"`
	AutoStart            bool   `json:"autoStart"`
	MinimizeToTray       bool   `json:"minimizeToTray"`
	CloseToTray          bool   `json:"closeToTray"`
	ShowTrayIcon         bool   `json:"showTrayIcon"`
	CheckUpdatesOnStart  bool   `json:"checkUpdatesOnStartup"`
	AssistantMessages    bool   `json:"assistantMessages"`
	Backup               bool   `json:"backup"`
	KnowledgeBase        bool   `json:"knowledgeBase"`
	AnonymousReporting   bool   `json:"anonymousReporting"`
}

// DisplaySettings 显示设置
type DisplaySettings struct {
	Theme             string  `json:"theme"`
	ThemeColor        string  `json:"themeColor"`
	TransparentWindow bool    `json:"transparentWindow"`
	NavbarPosition    string  `json:"navbarPosition"`
	ZoomLevel         int     `json:"zoomLevel"`
	TopicPosition     string  `json:"topicPosition"`
	AutoSwitchTopic   bool    `json:"autoSwitchTopic"`
	ShowTopicTime     bool    `json:"showTopicTime"`
	PinTopicTop       bool    `json:"pinTopicTop"`
	ModelIconType     string  `json:"modelIconType"`
	FontSize          int     `json:"fontSize"`
	FontFamily        string  `json:"fontFamily"`
	LineHeight        float64 `json:"lineHeight"`
	ShowLineNumbers   bool    `json:"showLineNumbers"`
	ShowMinimap       bool    `json:"showMinimap"`
	WordWrap          bool    `json:"wordWrap"`
	CursorStyle       string  `json:"cursorStyle"`
}

// ModelSettings 模型设置
type ModelSettings struct {
	Providers       map[string]ProviderConfig `json:"providers"`
	DefaultProvider string                    `json:"defaultProvider"`
	DefaultModel    string                    `json:"defaultModel"`
}

// SearchSettings 网络搜索设置
type SearchSettings struct {
	SearchProvider       string   `json:"searchProvider"`
	APIKey               string   `json:"apiKey"`
	APIURL               string   `json:"apiUrl"`
	IncludeAnswer        bool     `json:"includeAnswer"`
	MaxResults           int      `json:"maxResults"`
	CompressionMethod    string   `json:"compressionMethod"`
	BlacklistSites       []string `json:"blacklistSites"`
	EnableFullTextSearch bool     `json:"enableFullTextSearch"`
	EnableSemanticSearch bool     `json:"enableSemanticSearch"`
	IndexingEnabled      bool     `json:"indexingEnabled"`
}

// ShortcutSettings 快捷键设置
type ShortcutSettings struct {
	Shortcuts      []ShortcutItem `json:"shortcuts"`
	GlobalShortcut string         `json:"globalShortcut"`
	NewNote        string         `json:"newNote"`
	Search         string         `json:"search"`
	QuickCapture   string         `json:"quickCapture"`
	ToggleSidebar  string         `json:"toggleSidebar"`
}

// DocumentSettings 文档设置
type DocumentSettings struct {
	OCRProvider          string         `json:"ocrProvider"`
	OCRLanguages         []string       `json:"ocrLanguages"`
	DocumentProvider     string         `json:"documentProvider"`
	APIKey               string         `json:"apiKey"`
	APIURL               string         `json:"apiUrl"`
	Documents            []DocumentItem `json:"documents"`
	AutoSave             bool           `json:"autoSave"`
	AutoSaveInterval     int            `json:"autoSaveInterval"`
	DefaultFormat        string         `json:"defaultFormat"`
	EnableVersionControl bool           `json:"enableVersionControl"`
	MaxVersions          int            `json:"maxVersions"`
}

// DataSettings 数据设置
type DataSettings struct {
	DataDirectory   string `json:"dataDirectory"`
	DatabasePath    string `json:"databasePath"`
	AttachmentsPath string `json:"attachmentsPath"`
	LogsPath        string `json:"logsPath"`
	BackupEnabled   bool   `json:"backupEnabled"`
	BackupInterval  int    `json:"backupInterval"` // 小时
	MaxBackups      int    `json:"maxBackups"`
}

// MCPSettings MCP设置
type MCPSettings struct {
	Enabled bool              `json:"enabled"`
	Servers []MCPServerConfig `json:"servers"`
}

// MCPServerConfig MCP服务器配置
type MCPServerConfig struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
	Enabled bool              `json:"enabled"`
}

// MemorySettings 记忆设置
type MemorySettings struct {
	Enabled               bool   `json:"enabled"`
	MaxMemoryItems        int    `json:"maxMemoryItems"`
	RetentionDays         int    `json:"retentionDays"`
	AutoCleanup           bool   `json:"autoCleanup"`
	UserManagementEnabled bool   `json:"userManagementEnabled"`
	SelectedUser          string `json:"selectedUser"`
}
