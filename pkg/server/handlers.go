package server

import (
	"Swan/handler"
)

type Handlers struct {
	Gamification *handler.Gamification
	Points       *handler.Point
	Rules        *handler.Rules
	Session      *handler.Session
}
