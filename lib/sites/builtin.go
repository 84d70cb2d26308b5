package sites

const (
	openAIStop     = `button[aria-label="Stop generating"], button[data-testid="stop-button"], button[aria-label="Stop"]`
	openAIInput    = `textarea[data-id="root"], #prompt-textarea, textarea[placeholder*="Message"]`
	openAISend     = `button[data-testid="send-button"], button[aria-label*="Send"], button[data-tooltip*="发送"], form button:last-child:not([disabled]):not([data-testid="composer-plus-btn"])`
	openAIResponse = `[data-message-author-role="assistant"] .markdown`
	perplexityStop = `button[aria-label="Stop"], button[class*="stop"]`
)

var builtin = []Site{
	{Host: "chat.openai.com", DisplayName: "ChatGPT", Kind: KindChat, StopSelector: openAIStop, InputSelector: openAIInput, SendSelector: openAISend, ResponseSelector: openAIResponse},
	{Host: "chatgpt.com", DisplayName: "ChatGPT", Kind: KindChat, StopSelector: openAIStop, InputSelector: openAIInput, SendSelector: openAISend, ResponseSelector: openAIResponse},
	{
		Host:             "gemini.google.com",
		DisplayName:      "Gemini",
		Kind:             KindChat,
		StopSelector:     `button[aria-label="Stop response"], button[aria-label="Stop"], mat-icon[data-mat-icon-name="stop_circle"]`,
		InputSelector:    `div[contenteditable="true"], textarea`,
		SendSelector:     `button[aria-label*="Send"], button.send-button, [data-mat-icon-name="send"]`,
		ResponseSelector: `.model-response-text, .response-content`,
	},
	{
		Host:             "aistudio.google.com",
		DisplayName:      "AI Studio",
		Kind:             KindStudio,
		StopSelector:     `button[aria-label="Stop"], button[aria-label="Cancel"]`,
		InputSelector:    `textarea, div[contenteditable="true"]`,
		SendSelector:     `button[aria-label*="Send"], button.send-button`,
		ResponseSelector: `.response-container, .model-response`,
	},
	{
		Host:             "claude.ai",
		DisplayName:      "Claude",
		Kind:             KindChat,
		StopSelector:     `button[aria-label="Stop Response"], button[aria-label="Stop"]`,
		InputSelector:    `div[contenteditable="true"], textarea`,
		SendSelector:     `button[aria-label*="Send"], button[type="submit"]`,
		ResponseSelector: `[data-testid="assistant-message"], .assistant-message`,
	},
	{Host: "poe.com", DisplayName: "Poe", Kind: KindChat, StopSelector: `button[class*="StopButton"], button[class*="stop"]`},
	{Host: "notebooklm.google.com", DisplayName: "NotebookLM", Kind: KindChat, StopSelector: `button[aria-label="Stop"], .stop-button`},
	{Host: "www.perplexity.ai", DisplayName: "Perplexity", Kind: KindChat, StopSelector: perplexityStop},
	{Host: "perplexity.ai", DisplayName: "Perplexity", Kind: KindChat, StopSelector: perplexityStop},
	{
		Host:             "chat.deepseek.com",
		DisplayName:      "DeepSeek",
		Kind:             KindChat,
		StopSelector:     `button[aria-label="Stop"], .stop-btn`,
		InputSelector:    `textarea`,
		SendSelector:     `button[type="submit"], .send-btn`,
		ResponseSelector: `.assistant-message, .ai-response`,
	},
	{Host: "grok.x.ai", DisplayName: "Grok", Kind: KindChat, StopSelector: `button[aria-label="Stop"]`},
	{Host: "x.com", DisplayName: "Grok", Kind: KindChat, StopSelector: `button[aria-label="Stop"]`},
	{Host: "www.genspark.ai", DisplayName: "Genspark", Kind: KindChat, StopSelector: `button[aria-label="Stop"]`},
	{
		Host:             "tongyi.aliyun.com",
		DisplayName:      "通义千问",
		Kind:             KindChat,
		StopSelector:     `button[aria-label="停止"], .stop-btn`,
		InputSelector:    `textarea`,
		SendSelector:     `button[type="submit"]`,
		ResponseSelector: `.assistant-message`,
	},
	{
		Host:             "www.doubao.com",
		DisplayName:      "豆包",
		Kind:             KindChat,
		StopSelector:     `button[aria-label="停止"]`,
		InputSelector:    `textarea`,
		SendSelector:     `button[type="submit"]`,
		ResponseSelector: `.assistant-message`,
	},
	{Host: "ima.qq.com", DisplayName: "IMA", Kind: KindChat, StopSelector: `button[aria-label="停止"]`},
	{
		Host:             "kimi.moonshot.cn",
		DisplayName:      "Kimi",
		Kind:             KindChat,
		StopSelector:     `button[aria-label="停止"], .stop-btn`,
		InputSelector:    `textarea`,
		SendSelector:     `button[type="submit"]`,
		ResponseSelector: `.assistant-message`,
	},
	{Host: "yuanbao.tencent.com", DisplayName: "腾讯元宝", Kind: KindChat, StopSelector: `button[aria-label="停止"]`},
}

// Builtin returns the registry of sites supported out of the box.
func Builtin() *Registry {
	r, err := New(builtin)
	if err != nil {
		panic(err)
	}
	return r
}
