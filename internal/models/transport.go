package models

const (
	MsgUserCreated        = "User created"
	MsgUserExists         = "User exists"
	MsgLoginSuccess       = "Login success"
	MsgInvalidCredentials = "Invalid credentials"
	MsgBookmarksSaved     = "Bookmarks saved"
	MsgUserNotFound       = "User not found"
	MsgLoggedOut          = "Logged out"
	MsgUnauthorized       = "Unauthorized"
	MsgInvalidRequest     = "Invalid request"
	MsgInternalError      = "Internal error"
)

// Pointer fields make "required" a presence check, empty strings are accepted.
type CredentialsReq struct {
	Username *string `json:"username" validate:"required"`
	Password *string `json:"password" validate:"required"`
}

// BookmarksReq rejects a missing bookmarks field, an empty list clears them.
type BookmarksReq struct {
	Username  *string  `json:"username" validate:"required"`
	Bookmarks []string `json:"bookmarks" validate:"required"`
}

type MessageResp struct {
	Message string `json:"message"`
}

type LoginResp struct {
	Message   string   `json:"message"`
	Username  string   `json:"username"`
	Bookmarks []string `json:"bookmarks"`
	Token     string   `json:"token"`
	ExpiresAt int64    `json:"expires_at"`
}
