package handler

import (
	"Swan/pkg/response"
	"Swan/types"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_StartAndEnd(t *testing.T) {
	app := newTestApp(t, nil)
	tk := token(t, "user-1", "")

	var sess types.SessionResp
	_, body := app.do(t, http.MethodPost, "/api/v1/gamification/sessions", tk, nil, &sess)
	require.Equal(t, 0, body.Code, body.Msg)
	require.NotEmpty(t, sess.SessionID)

	_, body = app.do(t, http.MethodDelete, "/api/v1/gamification/sessions/"+sess.SessionID, token(t, "user-2", ""), nil, nil)
	assert.Equal(t, response.CodeNotFound, body.Code)

	_, body = app.do(t, http.MethodDelete, "/api/v1/gamification/sessions/"+sess.SessionID, tk, nil, nil)
	assert.Equal(t, 0, body.Code)
}
