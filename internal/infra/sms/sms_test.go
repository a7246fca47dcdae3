package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"rentara/internal/domain/notification"
	"rentara/internal/infra/config"
	"rentara/internal/infra/logger"
)

type stubCarrier struct {
	name  string
	err   error
	calls int
}

func (s *stubCarrier) Name() string { return s.name }

func (s *stubCarrier) Send(context.Context, string, string) error {
	s.calls++
	return s.err
}

func TestDispatcherNoCarrier(t *testing.T) {
	d := NewDispatcher(logger.Discard())
	if err := d.Send(context.Background(), "+254712345678", "hi"); !errors.Is(err, notification.ErrNoCarrier) {
		t.Fatalf("err = %v, want ErrNoCarrier", err)
	}
}

func TestDispatcherFailover(t *testing.T) {
	first := &stubCarrier{name: "twilio", err: errors.New("down")}
	second := &stubCarrier{name: "africastalking"}
	d := NewDispatcher(logger.Discard(), first, second)

	if err := d.Send(context.Background(), "+254712345678", "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("calls = %d, %d", first.calls, second.calls)
	}
}

func TestDispatcherStopsAtFirstSuccess(t *testing.T) {
	first := &stubCarrier{name: "twilio"}
	second := &stubCarrier{name: "africastalking"}
	d := NewDispatcher(logger.Discard(), first, second)

	if err := d.Send(context.Background(), "+254712345678", "hi"); err != nil {
		t.Fatal(err)
	}
	if second.calls != 0 {
		t.Fatal("second carrier used after first succeeded")
	}
}

func TestDispatcherAllFail(t *testing.T) {
	boom := errors.New("boom")
	d := NewDispatcher(logger.Discard(), &stubCarrier{name: "a", err: boom}, &stubCarrier{name: "b", err: boom})
	err := d.Send(context.Background(), "+254712345678", "hi")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestTwilioSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC1/Messages.json" {
			http.NotFound(w, r)
			return
		}
		if u, p, _ := r.BasicAuth(); u != "AC1" || p != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.FormValue("To") != "+254712345678" || r.FormValue("From") != "+15005550006" || r.FormValue("Body") != "hello" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":21211,"message":"bad"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	tw := NewTwilio(config.TwilioConfig{AccountSID: "AC1", AuthToken: "tok", FromNumber: "+15005550006"})
	tw.baseURL = srv.URL
	if err := tw.Send(context.Background(), "+254712345678", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := tw.Send(context.Background(), "+254700000000", "hello"); err == nil {
		t.Fatal("expected error for rejected message")
	}
}

func TestAfricasTalkingSend(t *testing.T) {
	status := 101
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apiKey") != "k" || r.FormValue("username") != "rentara" || r.FormValue("from") != "RENTARA" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 1/1","Recipients":[{"number":"+254712345678","status":"Success","statusCode":` +
			fmt.Sprint(status) + `,"messageId":"ATXid"}]}}`))
	}))
	defer srv.Close()

	at := NewAfricasTalking(config.AfricasTalkingConfig{APIKey: "k", Username: "rentara", ShortCode: "RENTARA"})
	at.baseURL = srv.URL
	if err := at.Send(context.Background(), "+254712345678", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	status = 403
	if err := at.Send(context.Background(), "+254712345678", "hello"); err == nil {
		t.Fatal("expected error for rejected recipient")
	}
}
