package domain

// AvatarPresets is the pool of cosmetic avatars handed out at join time.
var AvatarPresets = []Avatar{
	{ID: "av1", Emoji: "😀", Color: "#FF6B6B"},
	{ID: "av2", Emoji: "😎", Color: "#4ECDC4"},
	{ID: "av3", Emoji: "🤓", Color: "#45B7D1"},
	{ID: "av4", Emoji: "😺", Color: "#FFA07A"},
	{ID: "av5", Emoji: "🦊", Color: "#FF8C42"},
	{ID: "av6", Emoji: "🐼", Color: "#98D8C8"},
	{ID: "av7", Emoji: "🦁", Color: "#F7DC6F"},
	{ID: "av8", Emoji: "🐸", Color: "#7DCEA0"},
	{ID: "av9", Emoji: "🦄", Color: "#BB8FCE"},
}
