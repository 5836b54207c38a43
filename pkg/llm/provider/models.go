package provider

import "maps"

// Model aliases per provider. Names not listed are passed through unchanged.
var modelAliases = map[string]map[string]string{
	OpenAI: {
		"gpt-4-turbo":       "gpt-4-1106-preview",
		"gpt-4":             "gpt-4",
		"gpt-3.5-turbo":     "gpt-3.5-turbo",
		"gpt-3.5-turbo-16k": "gpt-3.5-turbo-16k",
	},
	Perplexity: {
		"sonar-small": "llama-3.1-sonar-small-128k-online",
		"sonar-large": "llama-3.1-sonar-large-128k-online",
		"sonar-huge":  "llama-3.1-sonar-huge-128k-online",
	},
	Groq: {
		"llama-3.1-70b": "llama-3.1-70b-versatile",
		"llama-3.1-8b":  "llama-3.1-8b-instant",
		"llama-3.2-1b":  "llama-3.2-1b-preview",
		"llama-3.2-3b":  "llama-3.2-3b-preview",
		"mixtral-8x7b":  "mixtral-8x7b-32768",
		"gemma-7b":      "gemma-7b-it",
		"gemma2-9b":     "gemma2-9b-it",
	},
	Ali: {
		"deepseek-v3": "deepseek-v3",
		"qwen-max":    "qwen-max",
		"qwen-turbo":  "qwen-turbo",
		"qwen-plus":   "qwen-plus",
		"qwen-long":   "qwen-long",
		"qwen2.5-72b": "qwen2.5-72b-instruct",
		"qwen2.5-32b": "qwen2.5-32b-instruct",
		"qwen2.5-14b": "qwen2.5-14b-instruct",
		"qwen2.5-7b":  "qwen2.5-7b-instruct",
	},
	Gemini: {
		"gemini-2.5-flash-lite": "gemini-2.5-flash-lite",
		"gemini-1.5-pro":        "gemini-1.5-pro",
		"gemini-1.5-flash":      "gemini-1.5-flash",
		"gemini-1.0-pro":        "gemini-1.0-pro",
	},
}

// ResolveModel maps a model alias to the provider's model name.
func ResolveModel(provider, model string) string {
	if resolved, ok := modelAliases[normalize(provider)][model]; ok {
		return resolved
	}
	return model
}

// ModelAliases returns a copy of the alias table of provider.
func ModelAliases(provider string) map[string]string {
	return maps.Clone(modelAliases[normalize(provider)])
}
