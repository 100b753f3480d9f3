package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"qrattend/internal/attendance"
	"qrattend/internal/audit"
	"qrattend/internal/auth"
	"qrattend/internal/credential"
	"qrattend/internal/directory"
	"qrattend/internal/ledger"
)

const qrImageSize = 256

var outcomeStatus = map[attendance.OutcomeKind]int{
	attendance.Accepted:           http.StatusOK,
	attendance.MalformedPayload:   http.StatusBadRequest,
	attendance.MissingLocation:    http.StatusBadRequest,
	attendance.UnknownStudent:     http.StatusNotFound,
	attendance.NoActiveCredential: http.StatusConflict,
	attendance.NonceMismatch:      http.StatusConflict,
	attendance.DuplicateForDay:    http.StatusConflict,
	attendance.Expired:            http.StatusGone,
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username and password required"})
		return
	}

	user, err := s.deps.Users.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	tokens, err := s.deps.Signer.Issue(user)
	if err != nil {
		s.internalError(c, "token issue", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":         tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"user":          user,
	})
}

func (s *Server) generateQR(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	studentID := c.Param("id")
	if claims.Role == auth.RoleStudent && claims.StudentID != studentID {
		c.JSON(http.StatusForbidden, gin.H{"message": "access denied"})
		return
	}

	cred, payload, err := s.deps.Service.IssueCredential(c.Request.Context(), studentID)
	if err != nil {
		if errors.Is(err, credential.ErrUnknownStudent) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Student not found"})
			return
		}
		s.internalError(c, "issue credential", err)
		return
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, qrImageSize)
	if err != nil {
		s.internalError(c, "render qr", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"qrData":    payload,
		"qrCode":    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		"issuedAt":  cred.IssuedAt,
		"expiresAt": cred.ExpiresAt,
	})
}

func (s *Server) listStudents(c *gin.Context) {
	students, err := s.deps.Service.Students(c.Request.Context())
	if err != nil {
		s.internalError(c, "list students", err)
		return
	}
	if students == nil {
		students = []directory.Student{}
	}
	c.JSON(http.StatusOK, students)
}

func (s *Server) profile(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	student, err := s.deps.Service.Student(c.Request.Context(), claims.StudentID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Student not found"})
			return
		}
		s.internalError(c, "load profile", err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (s *Server) mark(c *gin.Context) {
	var req struct {
		QRData    string          `json:"qrData"`
		Latitude  json.RawMessage `json:"latitude"`
		Longitude json.RawMessage `json:"longitude"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"outcome": attendance.MalformedPayload, "message": "invalid request body"})
		return
	}

	claims, _ := auth.FromContext(c)
	attempt := attendance.ScanAttempt{
		RawPayload: req.QRData,
		Timestamp:  s.now(),
		ActorID:    claims.Subject,
	}
	lat, latOK := coordinate(req.Latitude)
	lon, lonOK := coordinate(req.Longitude)
	if latOK && lonOK {
		attempt.Location = &ledger.Location{Latitude: lat, Longitude: lon}
	}

	out, err := s.deps.Service.ValidateScan(c.Request.Context(), attempt)
	if err != nil {
		s.internalError(c, "validate scan", err)
		return
	}
	s.publishAudit(out, attempt)

	body := gin.H{"outcome": out.Kind, "message": out.Kind.Message()}
	if out.Record != nil {
		body["attendance"] = out.Record
	}
	status, ok := outcomeStatus[out.Kind]
	if !ok {
		status = http.StatusBadRequest
	}
	c.JSON(status, body)
}

// coordinate reads a JSON number. Anything else, null included, is absent.
func coordinate(raw json.RawMessage) (float64, bool) {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func (s *Server) publishAudit(out attendance.Outcome, attempt attendance.ScanAttempt) {
	if s.deps.Publisher == nil {
		return
	}
	evt := audit.Event{
		StudentID: out.StudentID,
		ActorID:   attempt.ActorID,
		Outcome:   string(out.Kind),
		ScannedAt: attempt.Timestamp,
	}
	if out.Record != nil {
		evt.RecordID = out.Record.ID
	}
	// Detached from the request so a client disconnect does not drop the event.
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := s.deps.Publisher.Publish(ctx, evt); err != nil {
		s.deps.Metrics.IncAuditPublishFail()
		s.deps.Logger.Printf("audit publish failed: %v", err)
	}
}

type recordView struct {
	ledger.Record
	Student *directory.Student `json:"student"`
}

func (s *Server) allRecords(c *gin.Context) {
	ctx := c.Request.Context()
	records, err := s.deps.Service.ListAllAttendance(ctx)
	if err != nil {
		s.internalError(c, "list attendance", err)
		return
	}

	cache := make(map[string]*directory.Student)
	views := make([]recordView, 0, len(records))
	for _, r := range records {
		st, seen := cache[r.StudentID]
		if !seen {
			if found, err := s.deps.Service.Student(ctx, r.StudentID); err == nil {
				st = &found
			} else if !errors.Is(err, directory.ErrNotFound) {
				s.internalError(c, "resolve student", err)
				return
			}
			cache[r.StudentID] = st
		}
		views = append(views, recordView{Record: r, Student: st})
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) myAttendance(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	records, err := s.deps.Service.ListAttendanceFor(c.Request.Context(), claims.StudentID)
	if err != nil {
		s.internalError(c, "list my attendance", err)
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}
	c.JSON(http.StatusOK, records)
}
