package nav

import (
	"testing"
)

func TestNavigateRejectsUnknownScreen(t *testing.T) {
	n := NewNavigator()

	if err := n.Navigate(Screen("admin_panel"), Context{}); err == nil {
		t.Fatal("expected an error for an unknown screen")
	}

	screen, _ := n.Current()
	if screen != ScreenHome {
		t.Errorf("failed navigation must not move the screen, got %q", screen)
	}
}

func TestNavigateReplacesScreenAndContext(t *testing.T) {
	n := NewNavigator()

	if err := n.Navigate(ScreenChallengeDetail, Context{ChallengeID: 7}); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}

	screen, ctx := n.Current()
	if screen != ScreenChallengeDetail || ctx.ChallengeID != 7 {
		t.Errorf("unexpected state: %q %+v", screen, ctx)
	}
}

func TestApplyReferralRedirects(t *testing.T) {
	n := NewNavigator()

	// Viewing challenge 7, referral names challenge 42
	if err := n.Navigate(ScreenChallengeDetail, Context{ChallengeID: 7}); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}

	if !n.ApplyReferral(42) {
		t.Fatal("expected a redirect to the referred challenge")
	}

	screen, ctx := n.Current()
	if screen != ScreenChallengeDetail || ctx.ChallengeID != 42 {
		t.Errorf("expected detail of challenge 42, got %q %+v", screen, ctx)
	}
}

func TestApplyReferralNoopWhenAlreadyThere(t *testing.T) {
	n := NewNavigator()

	if err := n.Navigate(ScreenChallengeDetail, Context{ChallengeID: 42}); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}

	if n.ApplyReferral(42) {
		t.Error("referral to the already open challenge must not redirect")
	}
	if n.ApplyReferral(0) {
		t.Error("an empty referral must not redirect")
	}
}

func TestParseStartParam(t *testing.T) {
	param, err := ParseStartParam("challenge_42")
	if err != nil {
		t.Fatalf("ParseStartParam failed: %v", err)
	}
	if param.ChallengeID != 42 || param.InviteCode != "" {
		t.Errorf("unexpected param: %+v", param)
	}

	param, err = ParseStartParam("invite_abc-123")
	if err != nil {
		t.Fatalf("ParseStartParam failed: %v", err)
	}
	if param.InviteCode != "abc-123" || param.ChallengeID != 0 {
		t.Errorf("unexpected param: %+v", param)
	}

	if param, err := ParseStartParam(""); err != nil || param != nil {
		t.Errorf("empty param must yield (nil, nil), got %+v, %v", param, err)
	}

	for _, bad := range []string{"challenge_", "challenge_abc", "challenge_-5", "invite_", "garbage"} {
		if _, err := ParseStartParam(bad); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}
