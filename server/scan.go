package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"phishguard/archive"
	"phishguard/qrcode"
	"phishguard/store"
	"phishguard/vetting"
)

// ============================================================================
// URL
// ============================================================================

type scanRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleScanURL(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body", fmt.Errorf("%w: %v", vetting.ErrInvalidInput, err))
		return
	}
	target, err := vetting.ValidateURL(req.URL)
	if err != nil {
		sendError(w, "Invalid URL", err)
		return
	}
	log.Printf("[Scan] 🔍 scanning URL: %s", target)

	res, err := s.scanner.ScanURL(r.Context(), target)
	if err != nil {
		sendError(w, "Error scanning URL", err)
		return
	}
	s.finish(w, r, res, "", "URL scanned successfully")
}

func (s *Server) handleURLScanResult(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanId")
	us := s.scanner.URLScan()
	if !us.Configured() {
		sendError(w, "URLScan.io is not configured", vetting.ErrNotConfigured)
		return
	}
	if _, err := uuid.Parse(scanID); err != nil {
		sendJSON(w, http.StatusNotFound, envelope{Success: false, Message: "Unknown scan id"})
		return
	}

	res, err := us.GetResults(r.Context(), scanID)
	switch {
	case errors.Is(err, vetting.ErrPending):
		sendJSON(w, http.StatusAccepted, map[string]any{
			"success": false,
			"message": "Scan results not ready yet. Please wait a few seconds.",
			"pending": true,
		})
	case err != nil:
		log.Printf("[URLScan] results for %s: %v", scanID, err)
		sendJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"message": "URLScan.io results not found",
			"error":   err.Error(),
			"pending": false,
		})
	default:
		sendOK(w, "URLScan.io results retrieved successfully", res)
	}
}

// ============================================================================
// QR
// ============================================================================

func (s *Server) handleQRScan(w http.ResponseWriter, r *http.Request) {
	up, err := s.readImage(w, r, "qrImage")
	if err != nil {
		sendError(w, "Invalid upload", err)
		return
	}
	decoded, _, err := qrcode.DecodeBytes(up.data)
	if err != nil {
		if !errors.Is(err, qrcode.ErrNoCode) {
			err = fmt.Errorf("%w: %v", vetting.ErrInvalidInput, err)
		}
		sendError(w, "No QR code found in the image", err)
		return
	}
	log.Printf("[Scan] 📷 QR %s payload (%d chars) from %s", decoded.Type, len(decoded.Data), up.name)

	res, err := s.scanner.ScanQR(r.Context(), decoded)
	if err != nil {
		sendError(w, "Error scanning QR code", err)
		return
	}
	key := s.archiveUpload(r.Context(), "qr", up)
	s.finish(w, r, res, key, "QR code scanned successfully")
}

// ============================================================================
// EMAIL
// ============================================================================

type emailRequest struct {
	Content      string `json:"content"`
	EmailContent string `json:"emailContent"`
	SenderEmail  string `json:"senderEmail"`
	Subject      string `json:"subject"`
}

func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body", fmt.Errorf("%w: %v", vetting.ErrInvalidInput, err))
		return
	}
	content := req.Content
	if content == "" {
		content = req.EmailContent
	}
	e := vetting.Email{
		Content:     content,
		SenderEmail: strings.TrimSpace(req.SenderEmail),
		Subject:     strings.TrimSpace(req.Subject),
	}
	log.Printf("[Scan] 📧 analyzing email (%d characters)", len(content))

	res, err := s.scanner.ScanEmail(r.Context(), e)
	if err != nil {
		sendError(w, "Email content is required", err)
		return
	}
	s.finish(w, r, res, "", "Email analyzed successfully")
}

// ============================================================================
// SCREENSHOT
// ============================================================================

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	up, err := s.readImage(w, r, "screenshot")
	if err != nil {
		sendError(w, "Invalid upload", err)
		return
	}
	log.Printf("[Scan] 📸 analyzing screenshot: %s (%d bytes)", up.name, len(up.data))

	res, err := s.scanner.ScanScreenshot(r.Context(), up.data, up.contentType, up.name)
	if err != nil {
		sendError(w, "Error analyzing screenshot", err)
		return
	}
	key := s.archiveUpload(r.Context(), "screenshot", up)
	s.finish(w, r, res, key, "Screenshot analyzed successfully")
}

// ============================================================================
// SHARED
// ============================================================================

// finish explains, saves and returns a scan. Only the save can fail.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, res *vetting.ScanResult, artifactKey, message string) {
	rec, err := s.save(r.Context(), res, artifactKey)
	if err != nil {
		sendError(w, "Error saving scan", err)
		return
	}
	log.Printf("[Scan] ✅ %s %s: %s (%d/100)", rec.Kind, rec.ID, rec.Verdict.Label, rec.Verdict.Score)
	sendOK(w, message, rec)
}

func (s *Server) save(ctx context.Context, res *vetting.ScanResult, artifactKey string) (*store.Record, error) {
	rec := &store.Record{
		Kind:           res.Kind,
		Input:          res.Input,
		Verdict:        res.Verdict,
		ArtifactKey:    artifactKey,
		ScanDurationMs: res.Duration.Milliseconds(),
	}
	if res.Details != nil {
		raw, err := json.Marshal(res.Details)
		if err != nil {
			return nil, fmt.Errorf("encode details: %w", err)
		}
		rec.Details = raw
	}
	if exp := s.explainer.Explain(ctx, res); exp != nil {
		e := store.Explanation(*exp)
		rec.Explanation = &e
	}
	if _, err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

type upload struct {
	data        []byte
	contentType string
	name        string
}

// readImage reads one image part of a multipart form, enforcing the size
// limit and an image/* content type.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request, field string) (*upload, error) {
	limit := s.opts.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, fmt.Errorf("%w: limit is %d MB", errTooLarge, limit>>20)
		}
		return nil, fmt.Errorf("%w: %v", vetting.ErrInvalidInput, err)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: no %s file provided", vetting.ErrInvalidInput, field)
	}
	defer file.Close()
	if header.Size > limit {
		return nil, fmt.Errorf("%w: limit is %d MB", errTooLarge, limit>>20)
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vetting.ErrInvalidInput, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: limit is %d MB", errTooLarge, limit>>20)
	}

	ct := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: got %s", errUnsupported, ct)
	}
	return &upload{data: data, contentType: ct, name: header.Filename}, nil
}

// archiveUpload stores the raw upload. Failures only cost the artifact key.
func (s *Server) archiveUpload(ctx context.Context, kind string, up *upload) string {
	if s.archive == nil {
		return ""
	}
	key := archive.Key(kind, up.contentType, up.name)
	if err := s.archive.Put(ctx, key, up.data, up.contentType); err != nil {
		log.Printf("[Archive] ⚠️ %v", err)
		return ""
	}
	return key
}
