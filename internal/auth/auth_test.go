package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/hray3182/SpendWise/internal/models"
)

type fakeUsers struct {
	saved map[int64]string
	err   error
}

func (f *fakeUsers) GetOrCreate(ctx context.Context, userID int64, userName string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.saved == nil {
		f.saved = make(map[int64]string)
	}
	f.saved[userID] = userName
	return &models.User{UserID: userID, UserName: userName}, nil
}

func TestSignInOutEvents(t *testing.T) {
	users := &fakeUsers{}
	p := NewProvider(users)

	var events []Event
	stop := p.Watch(func(e Event) { events = append(events, e) })

	if _, err := p.SignIn(context.Background(), 7, "Rahim"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.SignIn(context.Background(), 7, "Rahim K"); err != nil {
		t.Fatal(err)
	}
	if u := p.Current(7); u == nil || u.UserName != "Rahim K" {
		t.Fatalf("Current = %+v", u)
	}
	if !p.SignOut(7) {
		t.Fatal("SignOut reported not signed in")
	}
	if p.SignOut(7) {
		t.Fatal("second SignOut reported success")
	}
	if p.Current(7) != nil {
		t.Fatal("still signed in")
	}

	if len(events) != 2 || !events[0].SignedIn || events[1].SignedIn {
		t.Fatalf("events = %+v", events)
	}

	stop()
	p.SignIn(context.Background(), 8, "Karim")
	if len(events) != 2 {
		t.Fatal("event delivered after stop")
	}
	if users.saved[8] != "Karim" {
		t.Fatal("user not recorded")
	}
}

func TestSignInFailure(t *testing.T) {
	p := NewProvider(&fakeUsers{err: errors.New("db down")})
	if _, err := p.SignIn(context.Background(), 1, "x"); err == nil {
		t.Fatal("expected error")
	}
	if p.Current(1) != nil {
		t.Fatal("failed sign-in left the user signed in")
	}
}

func TestDocumentKey(t *testing.T) {
	if got := DocumentKey(123456789012); got != "123456789012" {
		t.Fatalf("DocumentKey = %q", got)
	}
}
