package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/cleanbites/backend/internal/auth"
	"github.com/cleanbites/backend/internal/database"
	"github.com/cleanbites/backend/internal/form"
	"github.com/cleanbites/backend/internal/models"
)

// requestError is a request rejected before any downstream call.
type requestError struct {
	status  int
	message string
	err     error
}

func (e *requestError) Error() string {
	if e.err == nil {
		return e.message
	}
	return fmt.Sprintf("%s: %v", e.message, e.err)
}

func (e *requestError) Unwrap() error { return e.err }

func badRequest(message string, err error) *requestError {
	return &requestError{status: http.StatusBadRequest, message: message, err: err}
}

// bodyError reports a failed body read: 413 when the body is over the upload
// limit, 400 otherwise.
func bodyError(message string, err error) *requestError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &requestError{
			status:  http.StatusRequestEntityTooLarge,
			message: fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
			err:     err,
		}
	}
	return badRequest(message, err)
}

// sendFailure writes err as a request, validation or internal error.
func (s *Server) sendFailure(w http.ResponseWriter, err error, internalMessage string) {
	var (
		reqErr *requestError
		verrs  form.ValidationErrors
	)
	switch {
	case errors.As(err, &verrs):
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: verrs.Error(), Errors: verrs.Fields()})
	case errors.As(err, &reqErr):
		s.sendErrorResponse(w, reqErr.status, reqErr.message, reqErr.err)
	default:
		s.log.Error(internalMessage, "error", err)
		s.sendErrorResponse(w, http.StatusInternalServerError, internalMessage, err)
	}
}

// requestUserID resolves the user a request acts for. An authenticated
// subject wins; a different id claimed in the request is rejected.
func (s *Server) requestUserID(w http.ResponseWriter, r *http.Request, claimed string) (string, bool) {
	claimed = strings.TrimSpace(claimed)
	if subject, ok := auth.UserIDFromContext(r.Context()); ok {
		if claimed != "" && claimed != subject {
			s.authorize(w, r, claimed)
			return "", false
		}
		return subject, true
	}
	if claimed == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "User ID is missing", nil)
		return "", false
	}
	return claimed, true
}

func (s *Server) readUserDetails(w http.ResponseWriter, r *http.Request) (models.UserDetails, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes))
	if err != nil {
		return models.UserDetails{}, bodyError("Invalid data received: unreadable body", err)
	}
	details, err := form.DecodeUserDetails(body)
	var schemaErr *form.SchemaError
	if errors.As(err, &schemaErr) {
		return models.UserDetails{}, badRequest("Invalid data received: "+schemaErr.Error(), nil)
	}
	return details, err
}

func (s *Server) handleSaveDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.readUserDetails(w, r)
	if err != nil {
		s.sendFailure(w, err, "Failed to save details")
		return
	}
	if !s.authorize(w, r, details.UserID) {
		return
	}
	if err := form.ValidateUserDetails(details); err != nil {
		s.sendFailure(w, err, "Failed to save details")
		return
	}
	if err := s.db.SaveUserDetails(r.Context(), &details); err != nil {
		s.sendFailure(w, err, "Failed to save details")
		return
	}

	s.log.Info("User details saved", "user_id", details.UserID)
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Details saved successfully",
		"user_id": details.UserID,
	})
}

func (s *Server) handleGetUserDetails(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if !s.authorize(w, r, userID) {
		return
	}

	details, err := s.db.GetUserDetails(r.Context(), userID)
	if errors.Is(err, database.ErrNotFound) {
		s.sendErrorResponse(w, http.StatusNotFound, "No user details found for this user ID.", nil)
		return
	}
	if err != nil {
		s.sendFailure(w, err, "Failed to fetch details")
		return
	}
	s.writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleUpdateUserDetails(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	details, err := s.readUserDetails(w, r)
	if err != nil {
		s.sendFailure(w, err, "Failed to update details")
		return
	}
	if details.UserID != userID {
		s.sendErrorResponse(w, http.StatusBadRequest, "Invalid data received: userId mismatch", nil)
		return
	}
	if !s.authorize(w, r, userID) {
		return
	}
	if err := form.ValidateUserDetails(details); err != nil {
		s.sendFailure(w, err, "Failed to update details")
		return
	}
	if err := s.db.SaveUserDetails(r.Context(), &details); err != nil {
		s.sendFailure(w, err, "Failed to update details")
		return
	}

	s.log.Info("User details updated", "user_id", userID)
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Details updated successfully"})
}

func (s *Server) handleSaveFoodDetails(w http.ResponseWriter, r *http.Request) {
	sub, err := s.readFoodSubmission(w, r)
	if err != nil {
		s.sendFailure(w, err, "Failed to save food details")
		return
	}
	userID, ok := s.requestUserID(w, r, sub.UserID)
	if !ok {
		return
	}
	sub.UserID = userID

	if err := s.submitFood(r.Context(), sub); err != nil {
		s.sendFailure(w, err, "Failed to save food details")
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

// readFoodSubmission accepts either a multipart form, optionally carrying an
// infoImage file, or a JSON body.
func (s *Server) readFoodSubmission(w http.ResponseWriter, r *http.Request) (*models.FoodSubmission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)

	if !isMultipart(r) {
		var sub models.FoodSubmission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			return nil, bodyError("Invalid data received: body is not valid JSON", err)
		}
		return &sub, nil
	}

	if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadBytes); err != nil {
		return nil, bodyError("Invalid data received: malformed form", err)
	}
	sub := &models.FoodSubmission{
		UserID:        r.FormValue("userId"),
		ProductName:   r.FormValue("productName"),
		Ingredients:   r.FormValue("ingredients"),
		NutritionInfo: r.FormValue("nutritionInfo"),
	}

	image, mimeType, err := readUpload(r, "infoImage")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return nil, err
	default:
		sub.InfoImage = image
		sub.ImageType = mimeType
	}
	return sub, nil
}

func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	if !isMultipart(r) {
		s.sendErrorResponse(w, http.StatusBadRequest, "No image file provided", nil)
		return
	}
	if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadBytes); err != nil {
		s.sendFailure(w, bodyError("Invalid data received: malformed form", err), "Failed to extract text from image")
		return
	}

	image, mimeType, err := readUpload(r, "image")
	if errors.Is(err, http.ErrMissingFile) {
		s.sendErrorResponse(w, http.StatusBadRequest, "No image file provided", nil)
		return
	}
	if err != nil {
		s.sendFailure(w, err, "Failed to extract text from image")
		return
	}

	text, err := s.model.ExtractText(r.Context(), image, mimeType)
	if err != nil {
		s.sendFailure(w, err, "Failed to extract text from image")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"extracted_text": text})
}

type analysisRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) readAnalysisRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req analysisRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		s.sendFailure(w, bodyError("Invalid data received: body is not valid JSON", err), "Failed to process Gemini call")
		return "", false
	}
	return s.requestUserID(w, r, req.UserID)
}

// handleGeminiCall returns the model's payload as is.
func (s *Server) handleGeminiCall(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.readAnalysisRequest(w, r)
	if !ok {
		return
	}

	rec, err := s.runAnalysis(r.Context(), userID)
	if err != nil {
		status, message := analysisFailure(err, userID)
		s.log.Error("Analysis failed", "user_id", userID, "error", err)
		s.sendErrorResponse(w, status, message, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(rec.Payload); err != nil {
		s.log.Error("Error writing response", "error", err)
	}
}

// handleAnalyze runs the same analysis as handleGeminiCall and answers with
// the classified view model.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.readAnalysisRequest(w, r)
	if !ok {
		return
	}

	rec, err := s.runAnalysis(r.Context(), userID)
	if err != nil {
		status, message := analysisFailure(err, userID)
		s.log.Error("Analysis failed", "user_id", userID, "error", err)
		s.sendErrorResponse(w, status, message, err)
		return
	}
	resp, err := newAnalysisResponse(rec)
	if err != nil {
		s.sendFailure(w, err, "Failed to process Gemini call")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if !s.authorize(w, r, userID) {
		return
	}

	resp, err := s.history(r.Context(), userID, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		s.sendFailure(w, err, "Failed to retrieve history")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func parseLimit(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return DefaultHistoryLimit
	}
	return ClampHistoryLimit(n)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// readUpload returns the named file of a parsed multipart form and its image
// type. A part sent without a file name comes back as a 400.
func readUpload(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		if r.MultipartForm != nil && len(r.MultipartForm.Value[field]) > 0 {
			return nil, "", badRequest("No selected image file", nil)
		}
		return nil, "", http.ErrMissingFile
	}
	if err != nil {
		return nil, "", bodyError("Invalid data received: unreadable upload", err)
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, "", badRequest("No selected image file", nil)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", badRequest("Invalid data received: unreadable upload", err)
	}
	if len(data) == 0 {
		return nil, "", badRequest("No selected image file", nil)
	}
	return data, imageType(header, data), nil
}

func imageType(header *multipart.FileHeader, data []byte) string {
	if ct := header.Header.Get("Content-Type"); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return http.DetectContentType(data)
}
