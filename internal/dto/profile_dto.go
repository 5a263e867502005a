package dto

import "github.com/ahmetcoskunkizilkaya/profile-backend/internal/profilesync"

// UpdateProfileRequest is the JSON form of a profile save. Multipart saves
// carry the same fields plus an optional foto_file part.
type UpdateProfileRequest struct {
	Nome      string  `json:"nome" form:"nome"`
	Descricao string  `json:"descricao" form:"descricao"`
	Foto      *string `json:"foto" form:"foto"`
}

type SaveProfileResponse struct {
	Message string            `json:"message"`
	Profile profilesync.Draft `json:"profile"`
}
