package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"campusattend/internal/apiclient"
	"campusattend/internal/config"
	"campusattend/internal/credential"
	"campusattend/internal/events"
	"campusattend/internal/logger"
	"campusattend/internal/model"
	"campusattend/internal/session"
)

type captured struct {
	method string
	path   string
	query  url.Values
	auth   string
	ctype  string
	body   []byte
}

type harness struct {
	store   *credential.Memory
	bus     *events.InMemory
	session *session.Context
	factory *apiclient.Factory

	mu   sync.Mutex
	seen []captured
}

func newHarness(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) *harness {
	t.Helper()
	h := &harness{store: credential.NewMemory(), bus: events.NewInMemory(16)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		h.mu.Lock()
		h.seen = append(h.seen, captured{
			method: r.Method,
			path:   r.URL.EscapedPath(),
			query:  r.URL.Query(),
			auth:   r.Header.Get("Authorization"),
			ctype:  r.Header.Get("Content-Type"),
			body:   body,
		})
		h.mu.Unlock()
		if respond != nil {
			respond(w, r)
			return
		}
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	h.session = session.New(h.store, h.bus, logger.Discard())
	cfg := config.Client{BaseURL: srv.URL, APIPrefix: "/api/v1", RequestTimeout: 2 * time.Second, UploadTimeout: 2 * time.Second}
	h.factory = apiclient.NewFactory(cfg, h.session, apiclient.WithHTTPClient(srv.Client()), apiclient.WithLogger(logger.Discard()))
	return h
}

func (h *harness) last(t *testing.T) captured {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.seen) == 0 {
		t.Fatal("no request reached the server")
	}
	return h.seen[len(h.seen)-1]
}

func TestCatalog_FileOperationsAreMultipart(t *testing.T) {
	fileOps := map[string]bool{
		"student.upload_face_photo": true,
		"attendance.check_in_face":  true,
		"kiosk.check_in":            true,
		"admin.bulk_import":         true,
	}
	names := map[string]bool{}
	for _, e := range Catalog() {
		if names[e.Name] {
			t.Errorf("duplicate endpoint name %s", e.Name)
		}
		names[e.Name] = true

		if fileOps[e.Name] {
			if e.Encoding != EncodingMultipart || e.FileField != "file" {
				t.Errorf("%s: encoding=%s field=%q, want multipart with field file", e.Name, e.Encoding, e.FileField)
			}
			continue
		}
		if e.Encoding == EncodingMultipart {
			t.Errorf("%s is multipart but carries no file", e.Name)
		}
		if e.FileField != "" {
			t.Errorf("%s declares file field %q without multipart encoding", e.Name, e.FileField)
		}
		if !strings.HasPrefix(e.Path, "/") {
			t.Errorf("%s path %q should be rooted", e.Name, e.Path)
		}
	}
	for name := range fileOps {
		if !names[name] {
			t.Errorf("catalog is missing %s", name)
		}
	}
}

func TestCatalog_KioskOperationsAreUnauthenticated(t *testing.T) {
	var kiosk int
	for _, e := range Catalog() {
		if strings.Contains(e.Path, "/kiosk/") {
			kiosk++
			if e.Auth || !e.Kiosk {
				t.Errorf("%s: Auth=%v Kiosk=%v, want unauthenticated kiosk operation", e.Name, e.Auth, e.Kiosk)
			}
		} else if e.Kiosk {
			t.Errorf("%s flagged kiosk outside the kiosk paths", e.Name)
		}
	}
	if kiosk != 3 {
		t.Errorf("kiosk operations = %d, want 3", kiosk)
	}
}

func TestEndpoint_Build_RejectsUndeclaredQuery(t *testing.T) {
	_, err := adminUsers.Build(Args{Query: url.Values{"password": {"x"}}})
	if !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("Build() = %v, want ErrInvalidArgs", err)
	}
}

func TestEndpoint_Build_DropsEmptyFilters(t *testing.T) {
	req, err := adminUsers.Build(Args{Query: UserFilter{Role: credential.RoleLecturer, Page: model.Page{Limit: 20}}.query()})
	if err != nil {
		t.Fatal(err)
	}
	if req.Body != nil {
		t.Error("list filters must not produce a body")
	}
	want := url.Values{"role": {"lecturer"}, "limit": {"20"}}
	if req.Query.Encode() != want.Encode() {
		t.Errorf("query = %q, want %q", req.Query.Encode(), want.Encode())
	}
}

func TestEndpoint_Build_PathParameters(t *testing.T) {
	req, err := KioskQRCheckIn.Build(Args{Path: map[string]string{"session_id": "S 1/2"}, Body: KioskQR{StudentIDNumber: "ST100"}})
	if err != nil {
		t.Fatal(err)
	}
	if req.Path != "/attendance/sessions/S%201%2F2/kiosk/qr-check-in" {
		t.Errorf("path = %q", req.Path)
	}

	if _, err := KioskQRCheckIn.Build(Args{Body: KioskQR{}}); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("missing session_id: err = %v, want ErrInvalidArgs", err)
	}
	if _, err := authMe.Build(Args{Path: map[string]string{"user_id": "1"}}); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("extra path param: err = %v, want ErrInvalidArgs", err)
	}
}

func TestEndpoint_Build_EncodingRules(t *testing.T) {
	file := []apiclient.FilePart{{Field: "file", Content: strings.NewReader("x")}}

	if _, err := CheckInQR.Build(Args{Files: file}); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("file on JSON operation: err = %v", err)
	}
	if _, err := CheckInQR.Build(Args{Body: []byte{0xff}}); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("binary JSON body: err = %v", err)
	}
	if _, err := adminUsers.Build(Args{Body: map[string]string{"role": "admin"}}); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("body on query operation: err = %v", err)
	}
	if _, err := adminBulkImport.Build(Args{}); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("multipart without file: err = %v", err)
	}
	wrongField := []apiclient.FilePart{{Field: "image", Content: strings.NewReader("x")}}
	if _, err := adminBulkImport.Build(Args{Files: wrongField}); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("wrong file field: err = %v", err)
	}

	req, err := adminBulkImport.Build(Args{Files: file, Fields: map[string]string{"role": "student"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := req.Body.(apiclient.MultipartBody); !ok {
		t.Errorf("body = %T, want MultipartBody", req.Body)
	}
}

func TestAuth_LoginCredentialVisibleBeforeNextRequest(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/login" {
			w.Write([]byte(`{"access_token":"T","token_type":"bearer","user":{"id":7,"email":"s@uni.edu","role":"student"}}`))
			return
		}
		w.Write([]byte(`{"id":7,"email":"s@uni.edu","role":"student"}`))
	})
	client := h.factory.Authenticated()
	auth := NewAuth(client, h.session)
	ctx := context.Background()

	c, err := auth.Login(ctx, "s@uni.edu", "secret")
	if err != nil {
		t.Fatalf("Login() = %v", err)
	}
	stored, ok, err := h.store.Get(ctx)
	if err != nil || !ok || stored.Token != "T" || stored.User.ID != 7 {
		t.Fatalf("store after login = %+v ok=%v err=%v", stored, ok, err)
	}
	if c.User.Role != credential.RoleStudent {
		t.Errorf("role = %q", c.User.Role)
	}

	h.mu.Lock()
	login := h.seen[0]
	h.mu.Unlock()
	if login.ctype != "application/x-www-form-urlencoded" {
		t.Errorf("login Content-Type = %q", login.ctype)
	}
	form, _ := url.ParseQuery(string(login.body))
	if form.Get("username") != "s@uni.edu" || form.Get("password") != "secret" {
		t.Errorf("login form = %v", form)
	}

	if _, err := auth.Me(ctx); err != nil {
		t.Fatal(err)
	}
	if got := h.last(t).auth; got != "Bearer T" {
		t.Errorf("Authorization after login = %q, want Bearer T", got)
	}
}

func TestAuth_LoginWithoutTokenIsMalformed(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	})
	_, err := NewAuth(h.factory.Authenticated(), h.session).Login(context.Background(), "a", "b")
	if !errors.Is(err, apiclient.ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if _, ok, _ := h.store.Get(context.Background()); ok {
		t.Error("credential stored from a response without a token")
	}
}

func TestAuth_LogoutClearsWithoutTeardown(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if err := h.session.Establish(ctx, credential.Credential{Token: "T"}); err != nil {
		t.Fatal(err)
	}

	if err := NewAuth(h.factory.Authenticated(), h.session).Logout(ctx); err != nil {
		t.Fatalf("Logout() = %v", err)
	}
	if h.last(t).auth != "Bearer T" {
		t.Error("logout call should carry the credential it ends")
	}
	if _, ok, _ := h.store.Get(ctx); ok {
		t.Error("credential still held after logout")
	}

	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	ch, _ := h.bus.Consume(cctx)
	for evt := range ch {
		t.Errorf("unexpected event after logout: %+v", evt)
	}
}

func TestAuth_CheckEmailUsesQuery(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"email":"a@b.c","available":true}`))
	})
	ok, err := NewAuth(h.factory.Authenticated(), h.session).CheckEmail(context.Background(), "a@b.c")
	if err != nil || !ok {
		t.Fatalf("CheckEmail() = %v, %v", ok, err)
	}
	got := h.last(t)
	if got.method != http.MethodGet || got.query.Get("email") != "a@b.c" || len(got.body) != 0 {
		t.Errorf("request = %+v", got)
	}
}

func TestStudent_UploadFacePhoto(t *testing.T) {
	var angle, filename, content string
	h := newHarness(t, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		raw, _ := io.ReadAll(f)
		angle, filename, content = r.FormValue("angle"), hdr.Filename, string(raw)
		w.Write([]byte(`{"message":"ok","encoding_id":3,"quality_score":0.9,"quality_grade":"A"}`))
	}))
	defer srv.Close()
	cfg := config.Client{BaseURL: srv.URL, APIPrefix: "/api/v1", RequestTimeout: time.Second, UploadTimeout: time.Second}
	client := apiclient.NewFactory(cfg, h.session, apiclient.WithLogger(logger.Discard())).Authenticated()

	out, err := NewStudent(client).UploadFacePhoto(context.Background(), "me.jpg", strings.NewReader("JPEG"), AngleLeft)
	if err != nil {
		t.Fatal(err)
	}
	if out.EncodingID != 3 || angle != "left" || filename != "me.jpg" || content != "JPEG" {
		t.Errorf("out=%+v angle=%q filename=%q content=%q", out, angle, filename, content)
	}
}

func TestLecturer_SessionsFiltersInQuery(t *testing.T) {
	h := newHarness(t, nil)
	_, err := NewLecturer(h.factory.Authenticated()).Sessions(context.Background(), SessionFilter{DateFrom: "2024-03-01", Status: model.SessionInProgress})
	if err != nil {
		t.Fatal(err)
	}
	got := h.last(t)
	if got.path != "/api/v1/lecturers/sessions" || len(got.body) != 0 {
		t.Errorf("request = %+v", got)
	}
	if got.query.Get("date_from") != "2024-03-01" || got.query.Get("status") != "in_progress" || got.query.Has("date_to") {
		t.Errorf("query = %v", got.query)
	}
}

func TestAttendance_EndSessionBody(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Session ended successfully","session_id":12,"status":"completed","attendance_stats":{"present":20,"absent":3}}`))
	})
	out, err := NewAttendance(h.factory.Authenticated()).EndSession(context.Background(), "12", false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status.Phase() != model.PhaseEnded || out.Stats == nil || out.Stats.Present != 20 {
		t.Errorf("transition = %+v", out)
	}
	got := h.last(t)
	if got.path != "/api/v1/attendance/sessions/12/end" {
		t.Errorf("path = %q", got.path)
	}
	var body map[string]any
	json.Unmarshal(got.body, &body)
	if body["mark_absent"] != false {
		t.Errorf("body = %s", got.body)
	}
}

func TestAttendance_ManualMarkRejectsUnknownStatus(t *testing.T) {
	h := newHarness(t, nil)
	_, err := NewAttendance(h.factory.Authenticated()).ManualMark(context.Background(), "1", ManualMark{StudentID: 2, Status: "tardy"})
	if !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("err = %v, want ErrInvalidArgs", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.seen) != 0 {
		t.Error("invalid mark reached the server")
	}
}

func TestKiosk_RequiresUncredentialedClient(t *testing.T) {
	h := newHarness(t, nil)
	func() {
		defer func() {
			if recover() == nil {
				t.Error("NewKiosk(authenticated client) did not panic")
			}
		}()
		NewKiosk(h.factory.Authenticated())
	}()

	_, err := Execute(context.Background(), h.factory.Authenticated(), KioskQRCheckIn,
		Args{Path: map[string]string{"session_id": "1"}, Body: KioskQR{StudentIDNumber: "ST1"}})
	if !errors.Is(err, ErrWrongProfile) {
		t.Errorf("Execute(kiosk op, authenticated client) = %v, want ErrWrongProfile", err)
	}
}

func TestKiosk_StatusWithoutCredential(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"session_id":4,"status":"in_progress","can_check_in":true,"check_in_window":{"start":"2024-03-01T09:00:00","end":null},"statistics":{"present":5,"late":1,"total":30}}`))
	})
	h.session.Establish(context.Background(), credential.Credential{Token: "lecturer"})

	st, err := NewKiosk(h.factory.Kiosk()).Status(context.Background(), "4")
	if err != nil {
		t.Fatal(err)
	}
	if !st.CanCheckIn || st.Statistics.Total != 30 || !st.CheckInWindow.End.IsZero() {
		t.Errorf("status = %+v", st)
	}
	if h.last(t).auth != "" {
		t.Error("kiosk status carried a credential")
	}
}

func TestAdmin_BulkImport(t *testing.T) {
	var role, emails, ctype string
	h := newHarness(t, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		role, emails, ctype = r.FormValue("role"), r.FormValue("send_emails"), hdr.Header.Get("Content-Type")
		w.Write([]byte(`{"created":2}`))
	}))
	defer srv.Close()
	cfg := config.Client{BaseURL: srv.URL, APIPrefix: "/api/v1", RequestTimeout: time.Second, UploadTimeout: time.Second}
	client := apiclient.NewFactory(cfg, h.session, apiclient.WithLogger(logger.Discard())).Authenticated()

	out, err := NewAdmin(client).BulkImport(context.Background(), BulkImport{Filename: "users.csv", CSV: strings.NewReader("email\na@b.c\n")})
	if err != nil {
		t.Fatal(err)
	}
	if out["created"] != float64(2) {
		t.Errorf("out = %v", out)
	}
	if role != "student" || emails != "false" || ctype != "text/csv" {
		t.Errorf("role=%q send_emails=%q content-type=%q", role, emails, ctype)
	}
}

func TestAdmin_ReportsQuery(t *testing.T) {
	h := newHarness(t, nil)
	admin := NewAdmin(h.factory.Authenticated())
	ctx := context.Background()

	if _, err := admin.LowAttendanceReport(ctx, 62.5); err != nil {
		t.Fatal(err)
	}
	if got := h.last(t).query.Get("threshold"); got != "62.5" {
		t.Errorf("threshold = %q", got)
	}
	if _, err := admin.SystemUsageReport(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if q := h.last(t).query; len(q) != 0 {
		t.Errorf("system usage query = %v, want empty", q)
	}
}
