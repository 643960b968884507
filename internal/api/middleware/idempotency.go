package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/repository"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// idempotencyRecord is the stored outcome of a request made with an Idempotency-Key
type idempotencyRecord struct {
	RequestHash string          `json:"requestHash"`
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response when a POST/PUT/PATCH is
// repeated with the same Idempotency-Key and payload, and answers 409 when
// the key is reused with a different payload. Keys are scoped to the caller.
func IdempotencyMiddleware(store repository.SnapshotStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to POST/PUT/PATCH requests
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		idempotencyKey := c.GetHeader(IdempotencyKeyHeader)
		if idempotencyKey == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.Error("Failed to read request body for idempotency", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process request"})
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		hash := sha256.Sum256(append([]byte(c.Request.Method+" "+c.Request.URL.Path+"\n"), body...))
		requestHash := hex.EncodeToString(hash[:])

		scope := ""
		if caller, ok := GetCallerFromContext(c); ok {
			scope = caller.Email + ":"
		}
		key := repository.IdempotencyKey(scope + idempotencyKey)

		var existing idempotencyRecord
		found, err := repository.ReadJSON(c.Request.Context(), store, key, &existing)
		if err != nil {
			logger.Error("Failed to check idempotency key", zap.Error(err))
			c.Next()
			return
		}
		if found {
			if existing.RequestHash != requestHash {
				// Same key, different payload - conflict
				c.JSON(http.StatusConflict, gin.H{
					"error": "idempotency key conflict: same key used with different payload",
				})
				c.Abort()
				return
			}
			c.Header("Idempotent-Replayed", "true")
			c.Data(existing.Status, "application/json; charset=utf-8", existing.Body)
			c.Abort()
			return
		}

		writer := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		status := writer.Status()
		if status < 200 || status > 299 || !json.Valid(writer.body.Bytes()) {
			return
		}
		record := idempotencyRecord{RequestHash: requestHash, Status: status, Body: writer.body.Bytes()}
		if err := repository.WriteJSON(c.Request.Context(), store, key, record); err != nil {
			logger.Warn("Failed to store idempotency key", zap.String("key", idempotencyKey), zap.Error(err))
		}
	}
}
