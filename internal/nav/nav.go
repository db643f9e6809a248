package nav

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Screen identifies one view of the Mini App. The set is closed;
// Navigate rejects anything outside it.
type Screen string

const (
	ScreenHome            Screen = "home"
	ScreenChallengeList   Screen = "challenge_list"
	ScreenChallengeDetail Screen = "challenge_detail"
	ScreenEntry           Screen = "entry"
	ScreenProgress        Screen = "progress"
	ScreenCreate          Screen = "create"
	ScreenRequests        Screen = "requests"
	ScreenSettings        Screen = "settings"
)

// IsValid returns true if the screen is part of the closed set
func (s Screen) IsValid() bool {
	switch s {
	case ScreenHome, ScreenChallengeList, ScreenChallengeDetail,
		ScreenEntry, ScreenProgress, ScreenCreate, ScreenRequests, ScreenSettings:
		return true
	}
	return false
}

// Context carries the optional ids a screen is opened with
type Context struct {
	ChallengeID   int64 `json:"challenge_id,omitempty"`
	ParticipantID int64 `json:"participant_id,omitempty"`
}

// Navigator holds the single current screen of a session and replaces it
// synchronously on Navigate. There is no history stack.
type Navigator struct {
	mu      sync.Mutex
	current Screen
	ctx     Context
}

// NewNavigator creates a navigator positioned on the home screen
func NewNavigator() *Navigator {
	return &Navigator{current: ScreenHome}
}

// Navigate replaces the current screen. The screen must belong to the
// closed set; unknown identifiers are rejected rather than rendered.
func (n *Navigator) Navigate(screen Screen, ctx Context) error {
	if !screen.IsValid() {
		return fmt.Errorf("unknown screen: %q", screen)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = screen
	n.ctx = ctx
	return nil
}

// Current returns the active screen and its context
func (n *Navigator) Current() (Screen, Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current, n.ctx
}

// ApplyReferral handles the startup referral rule: if the referral names a
// challenge other than the one currently open, the session re-routes to that
// challenge's detail screen before the current one renders. Returns true
// when a redirect happened.
func (n *Navigator) ApplyReferral(challengeID int64) bool {
	if challengeID == 0 {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == ScreenChallengeDetail && n.ctx.ChallengeID == challengeID {
		return false
	}

	n.current = ScreenChallengeDetail
	n.ctx = Context{ChallengeID: challengeID}
	return true
}

// StartParam is a decoded Mini App launch parameter
type StartParam struct {
	ChallengeID int64
	InviteCode  string
}

// ParseStartParam decodes a launch parameter of the shape "challenge_<id>"
// or "invite_<code>". An empty parameter yields (nil, nil).
func ParseStartParam(param string) (*StartParam, error) {
	if param == "" {
		return nil, nil
	}

	switch {
	case strings.HasPrefix(param, "challenge_"):
		id, err := strconv.ParseInt(strings.TrimPrefix(param, "challenge_"), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid challenge referral: %q", param)
		}
		return &StartParam{ChallengeID: id}, nil

	case strings.HasPrefix(param, "invite_"):
		code := strings.TrimPrefix(param, "invite_")
		if code == "" {
			return nil, fmt.Errorf("invalid invite referral: %q", param)
		}
		return &StartParam{InviteCode: code}, nil
	}

	return nil, fmt.Errorf("unknown start param: %q", param)
}
