package offerapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := New(srv.URL, "demo-user")
	return c, srv
}

func TestIngestPDFRequestShape(t *testing.T) {
	var gotPath, gotQuery, gotUser, gotReqID string
	var gotFields map[string]string
	var gotFile string

	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUser = r.Header.Get("X-User-Id")
		gotReqID = r.Header.Get("X-Request-Id")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotFields = map[string]string{}
		for k, vs := range r.MultipartForm.Value {
			gotFields[k] = vs[0]
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			defer file.Close()
			b, _ := io.ReadAll(file)
			gotFile = hdr.Filename + ":" + string(b)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"offer_id":42,"extracted_text_chars":11,"parsed":{"base_salary":150000}}`)
	})
	defer srv.Close()

	pr := Priorities{Financial: 5, Career: 4, Lifestyle: 2, Alignment: 3}
	resp, err := c.IngestPDF(context.Background(), "offer.pdf", []byte("%PDF-sample"), pr)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if resp.OfferID != 42 || resp.ExtractedTextChars != 11 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Parsed.BaseSalary == nil || *resp.Parsed.BaseSalary != 150000 {
		t.Fatalf("parsed fields not decoded: %+v", resp.Parsed)
	}
	if gotPath != "/offers/ingest-pdf" || gotQuery != "create_records=true" {
		t.Fatalf("unexpected url %s?%s", gotPath, gotQuery)
	}
	if gotUser != "demo-user" {
		t.Fatalf("X-User-Id = %q", gotUser)
	}
	if gotReqID == "" {
		t.Fatal("X-Request-Id missing")
	}
	if gotFile != "offer.pdf:%PDF-sample" {
		t.Fatalf("file part = %q", gotFile)
	}
	want := map[string]string{
		"priority_financial": "5",
		"priority_career":    "4",
		"priority_lifestyle": "2",
		"priority_alignment": "3",
	}
	for k, v := range want {
		if gotFields[k] != v {
			t.Fatalf("field %s = %q, want %q", k, gotFields[k], v)
		}
	}
}

func TestIngestPDFRejectsBadPrioritiesLocally(t *testing.T) {
	called := false
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) { called = true })
	defer srv.Close()

	_, err := c.IngestPDF(context.Background(), "offer.pdf", []byte("x"), Priorities{Financial: 0, Career: 3, Lifestyle: 3, Alignment: 3})
	if !errors.Is(err, ErrBadPriority) {
		t.Fatalf("expected ErrBadPriority, got %v", err)
	}
	if called {
		t.Fatal("invalid priorities must not reach the server")
	}
}

func TestEvaluatePathAndDecode(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/offers/9/evaluate" || r.URL.Query().Get("mode") != "workflow" {
			t.Errorf("unexpected request %s %s?%s", r.Method, r.URL.Path, r.URL.RawQuery)
		}
		io.WriteString(w, `{"score":8.7,"recommendation":"accept","confidence":0.82,"one_paragraph_summary":"Strong offer."}`)
	})
	defer srv.Close()

	ev, err := c.Evaluate(context.Background(), 9)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if ev.Score != 8.7 || ev.Recommendation != RecommendationAccept || ev.Confidence != 0.82 {
		t.Fatalf("unexpected evaluation %+v", ev)
	}
}

func TestEvaluateRejectsIncompletePayload(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing score and confidence", `{"recommendation":"accept","key_drivers":[{"label":"Strong base","impact":"positive"}],"one_paragraph_summary":"s"}`},
		{"missing score", `{"recommendation":"accept","confidence":0.8}`},
		{"missing confidence", `{"score":7.5,"recommendation":"accept"}`},
		{"missing recommendation", `{"score":7.5,"confidence":0.8}`},
	}
	for _, c := range cases {
		body := c.body
		cl, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body)
		})
		ev, err := cl.Evaluate(context.Background(), 1)
		srv.Close()
		if !errors.Is(err, ErrIncompleteEvaluation) {
			t.Fatalf("%s: expected ErrIncompleteEvaluation, got ev=%+v err=%v", c.name, ev, err)
		}
	}
}

func TestEvaluationDecodeKeepsExplicitZeroes(t *testing.T) {
	// zero is a legal value for both fields; only absence is malformed
	cl, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"score":0,"recommendation":"needs_more_info","confidence":0}`)
	})
	defer srv.Close()
	ev, err := cl.Evaluate(context.Background(), 1)
	if err != nil {
		t.Fatalf("explicit zeroes should decode: %v", err)
	}
	if ev.Score != 0 || ev.Confidence != 0 || ev.Recommendation != RecommendationNeedsMoreInfo {
		t.Fatalf("unexpected evaluation %+v", ev)
	}
}

func TestMarketSnapshotDecode(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/offers/3/market-snapshot" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `{"p25":160000,"median":185000,"p75":210000,"sample_size":31}`)
	})
	defer srv.Close()

	snap, err := c.MarketSnapshot(context.Background(), 3)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.Median != 185000 || snap.SampleSize != 31 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestChatSendsMessageBody(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/offers/5/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		if string(b) != `{"message":"Is the equity fair?"}` {
			t.Errorf("unexpected body %s", b)
		}
		io.WriteString(w, `{"answer":"The grant is at the market median."}`)
	})
	defer srv.Close()

	resp, err := c.Chat(context.Background(), 5, "Is the equity fair?")
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if resp.Answer != "The grant is at the market median." {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, "Document appears to be empty.\n")
	})
	defer srv.Close()

	_, err := c.Evaluate(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Body != "Document appears to be empty." {
		t.Fatalf("body = %q", apiErr.Body)
	}
}

func TestMalformedSuccessBodyFails(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	})
	defer srv.Close()

	if _, err := c.MarketSnapshot(context.Background(), 1); err == nil {
		t.Fatal("expected decode error")
	}
}
