// Package media serves stored attachments at their public URLs.
package media

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"revline/internal/common"
	"revline/internal/dbmongo"
)

type ObjectOpener interface {
	Open(ctx context.Context, path string) (*dbmongo.Object, error)
	BucketName() string
}

type HTTPServer struct {
	objects ObjectOpener
	router  *mux.Router
}

func NewHTTPServer(objects ObjectOpener) *HTTPServer {
	s := &HTTPServer{objects: objects, router: mux.NewRouter()}
	s.router.HandleFunc("/storage/v1/object/public/{bucket}/{path:.+}", s.serveObject).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	return s
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *HTTPServer) serveObject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if vars["bucket"] != s.objects.BucketName() {
		common.WriteError(w, common.NotFound("bucket", vars["bucket"]))
		return
	}

	obj, err := s.objects.Open(r.Context(), vars["path"])
	if err != nil {
		common.WriteError(w, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	// Attachment paths embed the upload time, so an object never changes under its URL.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if !obj.UploadedAt.IsZero() {
		w.Header().Set("Last-Modified", obj.UploadedAt.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		log.Warn().Err(err).Str("path", obj.Path).Msg("error streaming object")
	}
}

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
