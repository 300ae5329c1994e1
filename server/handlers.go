// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"encoding/json"
	"html/template"
	"net/http"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<h1>Sign in</h1>
<p><a href="{{.}}">Log in with OpenID Connect</a></p>
</body>
</html>
`))

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, "/auth"); err != nil {
		s.logger.Error("unable to render entry page", "error", err)
	}
}

func (s *Server) beginAuth(w http.ResponseWriter, req *http.Request) {
	sessionID, err := s.cookies.Ensure(w, req)
	if err != nil {
		s.logger.Error("unable to create session", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	authURL, err := s.auth.BeginAuth(req.Context(), sessionID)
	if err != nil {
		s.logger.Error("unable to begin authentication", "error", err)
		http.Redirect(w, req, "/", http.StatusFound)
		return
	}
	http.Redirect(w, req, authURL, http.StatusFound)
}

func (s *Server) profile(w http.ResponseWriter, req *http.Request) {
	p, ok := PrincipalFromContext(req.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(p); err != nil {
		s.logger.Error("unable to write profile", "error", err)
	}
}

func (s *Server) logout(w http.ResponseWriter, req *http.Request) {
	if sessionID, ok := s.cookies.SessionID(req); ok {
		if err := s.auth.EndSession(req.Context(), sessionID); err != nil {
			s.logger.Error("unable to end session", "error", err)
		}
	}
	if err := s.cookies.Clear(w, req); err != nil {
		s.logger.Error("unable to clear session cookie", "error", err)
	}
	http.Redirect(w, req, "/", http.StatusFound)
}
