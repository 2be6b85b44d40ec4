package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rpucella.net/red-drive/internal/archive"
	"rpucella.net/red-drive/internal/catalog"
	"rpucella.net/red-drive/internal/storage"
	"rpucella.net/red-drive/internal/upload"
)

func (s *Server) listResources(c *gin.Context) {
	rs, err := s.store.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (s *Server) getResource(c *gin.Context) {
	r, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, catalog.Categories)
}

// downloadArchive bundles the resources named by the id query parameters,
// or every resource when there are none. Unknown ids fail before any byte
// is sent.
func (s *Server) downloadArchive(c *gin.Context) {
	ctx := c.Request.Context()
	var rs []catalog.Resource
	var err error
	if ids := c.QueryArray("id"); len(ids) > 0 {
		rs, err = s.store.Select(ctx, ids)
	} else {
		rs, err = s.store.List(ctx)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	var buf bytes.Buffer
	report, err := s.bundler.Bundle(ctx, &buf, rs)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.archiveName))
	c.Header("X-Archive-Skipped", strconv.Itoa(len(report.Skipped)))
	c.Data(http.StatusOK, archive.ContentType, buf.Bytes())
}

func (s *Server) createResource(c *gin.Context) {
	files, err := formFiles(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.coord.Upload(c.Request.Context(), upload.Request{
		ID:          c.PostForm("id"),
		Title:       c.PostForm("title"),
		Category:    c.PostForm("category"),
		Hint:        c.PostForm("hint"),
		Description: c.PostForm("description"),
		Files:       files,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) editResource(c *gin.Context) {
	files, err := formFiles(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e := upload.Edit{Add: files, Remove: c.PostFormArray("remove")}
	if v, ok := c.GetPostForm("title"); ok {
		e.Title = &v
	}
	if v, ok := c.GetPostForm("category"); ok {
		e.Category = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		e.Description = &v
	}
	res, err := s.coord.Edit(c.Request.Context(), c.Param("id"), e)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) deleteResource(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func formFiles(c *gin.Context) ([]upload.File, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bad multipart form: %w", err)
	}
	var files []upload.File
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("cannot open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", fh.Filename, err)
		}
		files = append(files, upload.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

// fail maps an error to a status code and a JSON body.
func (s *Server) fail(c *gin.Context, err error) {
	var uerr *upload.Error
	switch {
	case errors.As(err, &uerr):
		s.log.WithField("id", uerr.ID).WithError(err).Error("upload failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   err.Error(),
			"id":      uerr.ID,
			"file":    uerr.File,
			"written": uerr.Written,
		})
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, upload.ErrInvalidRequest), errors.Is(err, storage.ErrInvalidPath):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrUnavailable):
		s.log.WithError(err).Error("backend unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.log.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
