package common

// TokenCookieName is the cookie that may carry the session token.
const TokenCookieName = "token"

// AISenderID is the sentinel sender identity of AI-originated room messages.
const AISenderID = "ai"

// AISenderName is the display name paired with AISenderID.
const AISenderName = "AI"

// ProjectMessageEvent is the only post-handshake realtime event.
const ProjectMessageEvent = "project-message"
