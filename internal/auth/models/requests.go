// Package models defines the request and result shapes of the auth flows.
package models

import (
	"strings"

	dErrors "tokengate/pkg/domain-errors"

	sessionmodels "tokengate/internal/session/models"
)

// LoginRequest is the body of POST /auth/google and /auth/apple.
type LoginRequest struct {
	IDToken    string `json:"idToken"`
	Nonce      string `json:"nonce,omitempty"`
	DeviceID   string `json:"deviceId,omitempty"`
	DeviceType string `json:"deviceType,omitempty"`
	Platform   string `json:"platform,omitempty"`
	AppVersion string `json:"appVersion,omitempty"`
}

// Normalize trims surrounding whitespace from every field.
func (r *LoginRequest) Normalize() {
	r.IDToken = strings.TrimSpace(r.IDToken)
	r.Nonce = strings.TrimSpace(r.Nonce)
	r.DeviceID = strings.TrimSpace(r.DeviceID)
	r.DeviceType = strings.TrimSpace(r.DeviceType)
	r.Platform = strings.TrimSpace(r.Platform)
	r.AppVersion = strings.TrimSpace(r.AppVersion)
}

// Validate checks required fields.
func (r *LoginRequest) Validate() error {
	if r.IDToken == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "idToken is required")
	}
	return nil
}

// Device projects the request's device metadata into the session model.
func (r *LoginRequest) Device() sessionmodels.Device {
	return sessionmodels.Device{
		DeviceID:   r.DeviceID,
		DeviceType: r.DeviceType,
		Platform:   r.Platform,
		AppVersion: r.AppVersion,
	}
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *RefreshRequest) Normalize() {
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
}

func (r *RefreshRequest) Validate() error {
	if r.RefreshToken == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "refreshToken is required")
	}
	return nil
}

// RevokeRequest is the body of POST /auth/revoke.
type RevokeRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *RevokeRequest) Normalize() {
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
}

func (r *RevokeRequest) Validate() error {
	if r.RefreshToken == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "refreshToken is required")
	}
	return nil
}
