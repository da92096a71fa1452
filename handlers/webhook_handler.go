package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"brewedAtAPI/internal/logger"
	"brewedAtAPI/internal/types/clerk"
	"brewedAtAPI/internal/user"
	"brewedAtAPI/services"
)

const (
	maxWebhookBody   = int64(1 << 20)
	webhookTolerance = 5 * time.Minute
)

var errBadSignature = errors.New("invalid webhook signature")

type WebhookHandler struct {
	userService *services.UserService
	secret      string
	now         func() time.Time
}

func NewWebhookHandler(userService *services.UserService, secret string) *WebhookHandler {
	return &WebhookHandler{
		userService: userService,
		secret:      secret,
		now:         time.Now,
	}
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if err := h.verifySignature(r.Header, body); err != nil {
		logger.Sugar.Warnf("HandleClerkWebhook: %v", err)
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event clerk.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	logger.Sugar.Infof("Received webhook event: %s", event.Type)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	switch event.Type {
	case "user.created":
		err = h.handleUserCreated(ctx, event.Data)
	case "user.updated":
		err = h.handleUserUpdated(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		logger.Sugar.Debugf("Unhandled webhook event type: %s", event.Type)
	}

	if err != nil {
		logger.Sugar.Errorf("Error handling %s: %v", event.Type, err)
		respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func usernameFor(d *clerk.ClerkUserData, email string) string {
	if d.Username != "" {
		return d.Username
	}
	if name := strings.TrimSpace(d.FirstName + d.LastName); len(name) >= 3 {
		return name
	}
	if at := strings.Index(email, "@"); at >= 3 {
		return email[:at]
	}
	return d.ID
}

func imageFor(d *clerk.ClerkUserData) string {
	if d.ImageURL != "" {
		return d.ImageURL
	}
	return d.ProfileImageURL
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	var userData clerk.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	email, verified := userData.PrimaryEmail()

	created, err := h.userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:   userData.ID,
		Email:     email,
		Username:  usernameFor(&userData, email),
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  imageFor(&userData),
	})
	if err != nil {
		return fmt.Errorf("failed to create user in database: %w", err)
	}

	if verified {
		if err := h.userService.UpdateEmail(ctx, userData.ID, email, true); err != nil {
			return err
		}
	}

	logger.Sugar.Infof("Created user %s (Clerk ID: %s)", created.Username, created.ClerkID)
	return nil
}

func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	var userData clerk.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	email, verified := userData.PrimaryEmail()

	_, err := h.userService.UpdateProfileByClerkID(ctx, userData.ID, &user.UpdateProfileRequest{
		Username:  usernameFor(&userData, email),
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  imageFor(&userData),
	})
	if errors.Is(err, services.ErrUserNotFound) {
		// user.updated can arrive before user.created was processed
		return h.handleUserCreated(ctx, data)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return h.userService.UpdateEmail(ctx, userData.ID, email, verified)
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	err := h.userService.DeleteUserByClerkID(ctx, userData.ID)
	if err != nil && !errors.Is(err, services.ErrUserNotFound) {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	logger.Sugar.Infof("Deleted user: Clerk ID: %s", userData.ID)
	return nil
}

// verifySignature checks the svix headers Clerk signs webhooks with:
// base64(HMAC-SHA256(secret, id.timestamp.body)) in one of the "v1,<sig>" entries.
func (h *WebhookHandler) verifySignature(header http.Header, body []byte) error {
	if h.secret == "" {
		logger.Sugar.Warn("CLERK_WEBHOOK_SECRET not set, skipping signature verification")
		return nil
	}

	id := header.Get("svix-id")
	ts := header.Get("svix-timestamp")
	sigs := header.Get("svix-signature")
	if id == "" || ts == "" || sigs == "" {
		return fmt.Errorf("%w: missing headers", errBadSignature)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", errBadSignature)
	}
	sent := time.Unix(unix, 0)
	if d := h.now().Sub(sent); d > webhookTolerance || d < -webhookTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", errBadSignature)
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(h.secret, "whsec_"))
	if err != nil {
		return fmt.Errorf("%w: malformed secret", errBadSignature)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + ts + "."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, entry := range strings.Fields(sigs) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return nil
		}
	}
	return errBadSignature
}
