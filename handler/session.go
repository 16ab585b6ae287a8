package handler

import (
	"Swan/config"
	"Swan/dao"
	"Swan/middleware"
	"Swan/pkg/context"
	"Swan/pkg/response"
	"Swan/service"
	"Swan/types"
	"errors"

	"github.com/gin-gonic/gin"
)

type Session struct {
	SessionService service.ISessionService
	Config         *config.Config
}

func (s *Session) RegisterRouter(r gin.IRouter) {
	authorize := middleware.Auth([]byte(s.Config.Jwt.Secret))
	session := r.Group("/v1/gamification/sessions")
	session.Use(authorize)
	session.POST("", context.Wrap(s.Start))
	session.DELETE("/:id", context.Wrap(s.End))
}

func (s *Session) Start(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(response.CodeUnauthorized, "unauthorized")
	}
	sess, err := s.SessionService.Login(c.Request.Context(), uid)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, types.SessionResp{SessionID: sess.ID, StartedAt: sess.StartedAt})
	return nil
}

func (s *Session) End(c *gin.Context) error {
	uid, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(response.CodeUnauthorized, "unauthorized")
	}
	err = s.SessionService.Logout(c.Request.Context(), uid, c.Param("id"))
	if errors.Is(err, dao.ErrSessionNotFound) {
		return response.NewError(response.CodeNotFound, "session not found")
	}
	if err != nil {
		return err
	}
	response.Success(c, nil)
	return nil
}
