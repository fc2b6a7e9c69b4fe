package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/storage/cache"
	"github.com/trezcool/darasa/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*testutil.Env
	srv     *Server
	revoked *cache.MemoryRevocationStore
}

func setup(t *testing.T, configure ...func(conf *core.Config)) *testApp {
	env := testutil.NewEnv(t)
	for _, fn := range configure {
		fn(env.Conf)
	}
	revoked := cache.NewMemoryRevocationStore()

	srv := NewServer(ServerDeps{
		Conf:            env.Conf,
		Logger:          env.Logger,
		UserSvc:         env.Users,
		OrgSvc:          env.Orgs,
		SubjectSvc:      env.Subjects,
		ClassSvc:        env.Classes,
		ResourceSvc:     env.Resources,
		ScheduleSvc:     env.Schedule,
		DiscussionSvc:   env.Discussions,
		DashboardSvc:    env.Dashboard,
		RevocationStore: revoked,
		Validate:        env.Validate,
		Translator:      env.Translator,
		DisableReqLogs:  true,
	})
	t.Cleanup(func() { _ = srv.Close() })

	return &testApp{Env: env, srv: srv, revoked: revoked}
}

func (app *testApp) createUser(t *testing.T, uname, role string, isActive bool, pwd ...string) user.User {
	var password string
	if len(pwd) > 0 {
		password = pwd[0]
	}
	return testutil.CreateUser(t, app.Repos.Users, uname, uname, uname+"@test.cd", password, role, isActive)
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(app.Conf, GetUserClaims(app.Conf, usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

// run serves each test with `method` unless the test sets its own.
func (app *testApp) run(t *testing.T, method string, tests []httpTest) {
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = method
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
			if tt.check != nil {
				tt.check(t, rec)
			}
		})
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte // not compared when nil
	check    func(t *testing.T, rec *httptest.ResponseRecorder)
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(): %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// wantIDs checks the IDs of the listed records, in order.
func wantIDs(ids ...int) func(t *testing.T, rec *httptest.ResponseRecorder) {
	return func(t *testing.T, rec *httptest.ResponseRecorder) {
		var objs []struct {
			ID int `json:"id"`
		}
		unmarchall(t, rec, &objs)
		got := make([]int, 0, len(objs))
		for _, obj := range objs {
			got = append(got, obj.ID)
		}
		assert.Equal(t, append([]int{}, ids...), got)
	}
}
