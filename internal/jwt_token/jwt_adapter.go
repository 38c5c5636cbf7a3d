package jwttoken

import (
	"caseflow/internal/platform/middleware"
)

// JWTServiceAdapter bridges the token service to the middleware's validator
// interface without the middleware importing this package.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		ActorID:   claims.ActorID,
		Role:      claims.Role,
		ActorName: claims.ActorName,
	}, nil
}
