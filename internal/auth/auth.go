package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/storage"
)

const maxInitDataAge = 24 * time.Hour

// TelegramUser is the user object embedded in Mini App initData
type TelegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// InitData is the validated launch payload of a Mini App session
type InitData struct {
	User       TelegramUser
	StartParam string
	AuthDate   time.Time
}

// ValidateInitData verifies the HMAC-SHA256 signature and freshness of a
// Telegram Mini App initData string and decodes its user payload.
func ValidateInitData(initData, botToken string) (*InitData, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse initData: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, fmt.Errorf("hash not found in initData")
	}
	values.Del("hash")

	// Data check string: sorted key=value pairs joined by newlines
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+values.Get(key))
	}
	dataCheckString := strings.Join(pairs, "\n")

	// Secret key is HMAC of the bot token keyed with "WebAppData"
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dataCheckString))
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(hash)) {
		return nil, fmt.Errorf("invalid initData signature")
	}

	authDateUnix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid auth_date: %w", err)
	}
	authDate := time.Unix(authDateUnix, 0)
	if time.Since(authDate) > maxInitDataAge {
		return nil, fmt.Errorf("initData is too old")
	}

	userJSON := values.Get("user")
	if userJSON == "" {
		return nil, fmt.Errorf("user not found in initData")
	}

	var user TelegramUser
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("user id missing in initData")
	}

	return &InitData{
		User:       user,
		StartParam: values.Get("start_param"),
		AuthDate:   authDate,
	}, nil
}

// Middleware validates Telegram initData and resolves the application user
type Middleware struct {
	repo     storage.Repository
	botToken string
}

// NewMiddleware creates new auth middleware
func NewMiddleware(repo storage.Repository, botToken string) *Middleware {
	return &Middleware{repo: repo, botToken: botToken}
}

// Authenticate verifies the X-Telegram-Init-Data header, upserts the user
// row keyed by Telegram id and injects the user into the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		initData := r.Header.Get("X-Telegram-Init-Data")
		if initData == "" {
			writeAuthError(w, http.StatusUnauthorized, "missing init data", "provide the X-Telegram-Init-Data header")
			return
		}

		data, err := ValidateInitData(initData, m.botToken)
		if err != nil {
			slog.Warn("init data validation failed", "error", err, "remote_addr", r.RemoteAddr)
			writeAuthError(w, http.StatusUnauthorized, "invalid init data", "the launch payload is not valid")
			return
		}

		user, err := m.repo.UpsertUser(r.Context(), &models.User{
			TelegramID: data.User.ID,
			Username:   data.User.Username,
			FirstName:  data.User.FirstName,
			LastName:   data.User.LastName,
		})
		if err != nil {
			slog.Error("failed to upsert user", "error", err, "telegram_id", data.User.ID)
			writeAuthError(w, http.StatusInternalServerError, "authentication error", "internal server error")
			return
		}

		ctx := ContextWithUser(r.Context(), user)
		ctx = ContextWithStartParam(ctx, data.StartParam)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const (
	userKey       contextKey = "user"
	startParamKey contextKey = "start_param"
)

// ContextWithUser adds the authenticated user to the context
func ContextWithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext retrieves the authenticated user from the context
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// ContextWithStartParam adds the launch start param to the context
func ContextWithStartParam(ctx context.Context, param string) context.Context {
	return context.WithValue(ctx, startParamKey, param)
}

// StartParamFromContext retrieves the launch start param from the context
func StartParamFromContext(ctx context.Context) string {
	p, _ := ctx.Value(startParamKey).(string)
	return p
}

// writeAuthError writes a JSON error response
func writeAuthError(w http.ResponseWriter, status int, errText, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   errText,
		"message": message,
	})
}
