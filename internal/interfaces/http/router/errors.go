package router

import "github.com/clubledger/backend/internal/domain/shared"

var errRouteNotFound = shared.ErrNotFound.WithMessage("route not found")
