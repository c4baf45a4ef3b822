package service

import "errors"

// カスタムエラー定義
var (
	ErrTownNotFound           = errors.New("town not found")
	ErrNotTownOwner           = errors.New("forbidden: invalid town update password")
	ErrTownAlreadyExists      = errors.New("town already exists")
	ErrTownIDGenerationFailed = errors.New("failed to generate unique town ID after multiple attempts")
	ErrInvalidFriendlyName    = errors.New("invalid friendly name")
)
