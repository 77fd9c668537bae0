package model

// DefaultAppConfig 返回编译期默认配置的全新副本
func DefaultAppConfig() AppConfig {
	return AppConfig{
		General: GeneralSettings{
			Language:             "zh-CN",
			Theme:                "auto",
			ProxyMode:            "system",
			SpellCheck:           true,
			HardwareAcceleration: true,
			AutoStart:            false,
			MinimizeToTray:       true,
			CloseToTray:          false,
			ShowTrayIcon:         true,
			CheckUpdatesOnStart:  true,
			AssistantMessages:    true,
			Backup:               true,
			KnowledgeBase:        true,
			AnonymousReporting:   true,
		},
		Display: DisplaySettings{
			Theme:             "深色",
			ThemeColor:        "#00B96B",
			TransparentWindow: true,
			NavbarPosition:    "左侧",
			ZoomLevel:         100,
			TopicPosition:     "左侧",
			AutoSwitchTopic:   false,
			ShowTopicTime:     true,
			PinTopicTop:       false,
			ModelIconType:     "模型图标",
			FontSize:          14,
			FontFamily:        "system-ui, -apple-system, sans-serif",
			LineHeight:        1.6,
			ShowLineNumbers:   false,
			ShowMinimap:       false,
			WordWrap:          true,
			CursorStyle:       "line",
		},
		Models: ModelSettings{
			Providers:       map[string]ProviderConfig{},
			DefaultProvider: "",
			DefaultModel:    "",
		},
		Search: SearchSettings{
			SearchProvider:       "Tavily (API 密钥)",
			APIKey:               "",
			APIURL:               "https://api.tavily.com",
			IncludeAnswer:        true,
			MaxResults:           5,
			CompressionMethod:    "不压缩",
			BlacklistSites:       []string{},
			EnableFullTextSearch: true,
			EnableSemanticSearch: false,
			IndexingEnabled:      true,
		},
		Shortcuts: ShortcutSettings{
			Shortcuts:      DefaultShortcuts(),
			GlobalShortcut: "CommandOrControl+Shift+K",
			NewNote:        "CommandOrControl+N",
			Search:         "CommandOrControl+F",
			QuickCapture:   "CommandOrControl+Shift+N",
			ToggleSidebar:  "CommandOrControl+B",
		},
		Document: DocumentSettings{
			OCRProvider:          "系统OCR",
			OCRLanguages:         []string{},
			DocumentProvider:     "MinerU",
			APIKey:               "",
			APIURL:               "https://mineru.net",
			Documents:            []DocumentItem{},
			AutoSave:             true,
			AutoSaveInterval:     30,
			DefaultFormat:        "markdown",
			EnableVersionControl: true,
			MaxVersions:          10,
		},
		Data: DataSettings{
			DataDirectory:   "",
			DatabasePath:    "",
			AttachmentsPath: "",
			LogsPath:        "",
			BackupEnabled:   true,
			BackupInterval:  24,
			MaxBackups:      7,
		},
		MCP: MCPSettings{
			Enabled: false,
			Servers: []MCPServerConfig{},
		},
		Memory: MemorySettings{
			Enabled:               true,
			MaxMemoryItems:        1000,
			RetentionDays:         30,
			AutoCleanup:           true,
			UserManagementEnabled: true,
			SelectedUser:          "default",
		},
	}
}

// DefaultShortcuts 默认快捷键列表
func DefaultShortcuts() []ShortcutItem {
	return []ShortcutItem{
		{ID: "display-hidden-app", Name: "显示/隐藏应用", Description: "快速显示或隐藏应用窗口", DefaultKey: "按下快捷键", CurrentKey: "按下快捷键", Category: "app", Enabled: true},
		{ID: "quick-assistant", Name: "快捷助手", Description: "快速打开AI助手对话", DefaultKey: "⌘ + E", CurrentKey: "⌘ + E", Category: "assistant", Enabled: true},
		{ID: "open-assistant", Name: "开关助手", Description: "开启或关闭助手功能", DefaultKey: "按下快捷键", CurrentKey: "按下快捷键", Category: "assistant", Enabled: true},
		{ID: "assistant-word", Name: "划词助手：取词", Description: "选中文字后快速取词翻译", DefaultKey: "按下快捷键", CurrentKey: "按下快捷键", Category: "assistant", Enabled: true},
		{ID: "exit-fullscreen", Name: "退出全屏", Description: "退出全屏模式", DefaultKey: "Escape", CurrentKey: "Escape", Category: "display", Enabled: true},
		{ID: "new-conversation", Name: "新建话题", Description: "创建新的对话话题", DefaultKey: "⌘ + N", CurrentKey: "⌘ + N", Category: "conversation", Enabled: true},
		{ID: "toggle-assistant-tips", Name: "切换助手显示", Description: "显示或隐藏助手提示信息", DefaultKey: "⌘ + [", CurrentKey: "⌘ + [", Category: "assistant", Enabled: true},
		{ID: "toggle-conversation-tips", Name: "切换话题显示", Description: "显示或隐藏话题列表", DefaultKey: "⌘ + ]", CurrentKey: "⌘ + ]", Category: "conversation", Enabled: true},
		{ID: "copy-last-message", Name: "复制上一条消息", Description: "快速复制最后一条对话消息", DefaultKey: "⌘ + ⇧ + C", CurrentKey: "⌘ + ⇧ + C", Category: "conversation", Enabled: true},
		{ID: "search-messages", Name: "搜索消息", Description: "在对话历史中搜索消息", DefaultKey: "⌘ + ⇧ + F", CurrentKey: "⌘ + ⇧ + F", Category: "conversation", Enabled: true},
		{ID: "clear-messages", Name: "清空消息", Description: "清空当前对话的所有消息", DefaultKey: "⌘ + L", CurrentKey: "⌘ + L", Category: "conversation", Enabled: true},
		{ID: "clear-context", Name: "清除上下文", Description: "清除对话的上下文记忆", DefaultKey: "⌘ + K", CurrentKey: "⌘ + K", Category: "conversation", Enabled: true},
		{ID: "search-previous", Name: "在当前对话中搜索消息", Description: "在当前对话历史中搜索特定消息", DefaultKey: "⌘ + F", CurrentKey: "⌘ + F", Category: "conversation", Enabled: true},
	}
}
