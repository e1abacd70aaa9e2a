//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cinevault/apiserver/config"
	"github.com/cinevault/apiserver/internal/db"
	"github.com/cinevault/apiserver/internal/server"
	"github.com/cinevault/apiserver/internal/services"
	"github.com/cinevault/apiserver/internal/services/servicestest"
	"github.com/cinevault/apiserver/internal/storage"
	"github.com/cinevault/apiserver/internal/store"
	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const postgresPort = 45432

var (
	baseURL string
	objects *servicestest.Objects
	conn    *sql.DB
)

func TestMain(m *testing.M) {
	code, err := run(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "e2e setup failed: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run(m *testing.M) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	baseDir, err := os.MkdirTemp("", "cinevault-e2e")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(baseDir)

	dbCfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     postgresPort,
		User:     "postgres",
		Password: "postgres",
		DBName:   "cinevault_test",
	}
	pg := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		Username(dbCfg.User).
		Password(dbCfg.Password).
		Database(dbCfg.DBName).
		Port(uint32(dbCfg.Port)).
		DataPath(filepath.Join(baseDir, "data")).
		RuntimePath(filepath.Join(baseDir, "runtime")).
		CachePath(filepath.Join(baseDir, "cache")).
		Logger(io.Discard))
	if err := pg.Start(); err != nil {
		return 0, fmt.Errorf("start embedded postgres: %w", err)
	}
	defer func() { _ = pg.Stop() }()

	if err := db.Migrate(db.BuildURL(dbCfg), db.Up, zap.NewNop()); err != nil {
		return 0, err
	}

	conn, err = db.Open(ctx, dbCfg)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	tokens, err := services.NewTokenService("e2e-secret", time.Hour)
	if err != nil {
		return 0, err
	}
	users := store.NewUserRepository(conn)
	movies := store.NewMovieRepository(conn)
	images := store.NewImageRepository(conn)
	objects = servicestest.NewObjects("cinevault")

	auth, err := services.NewAuthService(users, bcrypt.MinCost)
	if err != nil {
		return 0, err
	}
	router := server.NewRouter(server.Services{
		Auth:    auth,
		Users:   services.NewUserService(users, nil, services.UserOptions{BcryptCost: bcrypt.MinCost}, nil),
		Movies:  services.NewMovieService(movies, images, objects, nil),
		Uploads: services.NewUploadService(movies, images, objects, nil, nil),
		Tokens:  tokens,
	}, nil, nil)

	srv := httptest.NewServer(router)
	defer srv.Close()
	baseURL = srv.URL

	return m.Run(), nil
}

func TestMovieOwnershipScenario(t *testing.T) {
	anaEmail := uniqueEmail("ana")
	anaID, anaToken := signupAndLogin(t, "Ana", anaEmail, "secret1")
	_, bobToken := signupAndLogin(t, "Bob", uniqueEmail("bob"), "secret2")

	var movie movieResponse
	status, err := call(http.MethodPost, "/movies", anaToken, map[string]any{
		"title":           "Dune",
		"releaseDate":     "2021-10-22",
		"durationMinutes": 155,
		"genres":          []string{"Sci-Fi", "Adventure"},
		"budgetUSD":       165000000,
	}, &movie)
	if err != nil || status != http.StatusCreated {
		t.Fatalf("create movie: status %d: %v", status, err)
	}
	if movie.UserID != anaID {
		t.Fatalf("movie owner = %q, want %q", movie.UserID, anaID)
	}

	status, _ = call(http.MethodPatch, "/movies/"+movie.ID, bobToken, map[string]any{"title": "Stolen"}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("foreign patch status = %d, want 403", status)
	}

	var fetched movieResponse
	status, err = call(http.MethodGet, "/movies/"+movie.ID, bobToken, nil, &fetched)
	if err != nil || status != http.StatusOK {
		t.Fatalf("get movie: status %d: %v", status, err)
	}
	if fetched.Title != "Dune" {
		t.Fatalf("title changed to %q", fetched.Title)
	}

	status, _ = call(http.MethodGet, "/movies/not-a-uuid", bobToken, nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("malformed id status = %d, want 404", status)
	}

	var page pageResponse
	status, err = call(http.MethodGet, "/movies?mine=true&search=adventure", anaToken, nil, &page)
	if err != nil || status != http.StatusOK {
		t.Fatalf("search movies: status %d: %v", status, err)
	}
	if page.Total != 1 {
		t.Fatalf("genre search total = %d, want 1", page.Total)
	}
}

func TestMovieListingPagination(t *testing.T) {
	_, token := signupAndLogin(t, "Pager", uniqueEmail("pager"), "secret1")

	start := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		status, err := call(http.MethodPost, "/movies", token, map[string]any{
			"title":           fmt.Sprintf("Pager %02d", i),
			"releaseDate":     start.AddDate(0, 0, i).Format("2006-01-02"),
			"durationMinutes": 100,
		}, nil)
		if err != nil || status != http.StatusCreated {
			t.Fatalf("create movie %d: status %d: %v", i, status, err)
		}
	}

	var page pageResponse
	status, err := call(http.MethodGet, "/movies?mine=true&page=2&pageSize=12", token, nil, &page)
	if err != nil || status != http.StatusOK {
		t.Fatalf("list movies: status %d: %v", status, err)
	}
	if page.Total != 30 || len(page.Items) != 12 {
		t.Fatalf("page 2: total %d items %d", page.Total, len(page.Items))
	}
	// Newest first: page 2 holds the 13th to 24th newest releases.
	if page.Items[0].Title != "Pager 17" || page.Items[11].Title != "Pager 06" {
		t.Fatalf("page 2 spans %q..%q", page.Items[0].Title, page.Items[11].Title)
	}
}

func TestConcurrentPrimaryConfirmations(t *testing.T) {
	_, token := signupAndLogin(t, "Uploader", uniqueEmail("uploader"), "secret1")

	var movie movieResponse
	status, err := call(http.MethodPost, "/movies", token, map[string]any{
		"title": "Arrival", "releaseDate": "2016-11-11", "durationMinutes": 116,
	}, &movie)
	if err != nil || status != http.StatusCreated {
		t.Fatalf("create movie: status %d: %v", status, err)
	}

	const uploads = 8
	keys := make([]string, uploads)
	for i := range keys {
		keys[i] = fmt.Sprintf("movies/%s/%d-still.png", movie.ID, i)
		objects.Put(keys[i], storage.ObjectInfo{ContentType: "image/png", Size: 2048, ETag: fmt.Sprint(i)})
	}

	var wg sync.WaitGroup
	errs := make(chan error, uploads)
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			status, err := call(http.MethodPost, "/storage/movies/"+movie.ID+"/images/confirm", token,
				map[string]any{"key": key, "type": "POSTER", "setAsPrimary": true}, nil)
			if err == nil && status != http.StatusCreated {
				err = fmt.Errorf("confirm %s: status %d", key, status)
			}
			errs <- err
		}(key)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	var primaries int
	if err := conn.QueryRow(`SELECT count(*) FROM movie_images WHERE movie_id = $1 AND is_primary`, movie.ID).Scan(&primaries); err != nil {
		t.Fatalf("count primaries: %v", err)
	}
	if primaries != 1 {
		t.Fatalf("primary images = %d, want 1", primaries)
	}

	status, err = call(http.MethodDelete, "/movies/"+movie.ID, token, nil, nil)
	if err != nil || status != http.StatusOK {
		t.Fatalf("delete movie: status %d: %v", status, err)
	}
	var remaining int
	if err := conn.QueryRow(`SELECT count(*) FROM movie_images WHERE movie_id = $1`, movie.ID).Scan(&remaining); err != nil {
		t.Fatalf("count images: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("images left after movie delete: %d", remaining)
	}
}

type movieResponse struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Title  string `json:"title"`
}

type pageResponse struct {
	Items []movieResponse `json:"items"`
	Total int             `json:"total"`
}

func uniqueEmail(name string) string {
	return fmt.Sprintf("%s_%d@example.com", name, time.Now().UnixNano())
}

func signupAndLogin(t *testing.T, name, email, password string) (string, string) {
	t.Helper()

	status, err := call(http.MethodPost, "/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": password,
	}, nil)
	if err != nil || status != http.StatusCreated {
		t.Fatalf("signup %s: status %d: %v", email, status, err)
	}

	var login struct {
		User  struct{ ID string } `json:"user"`
		Token string              `json:"token"`
	}
	status, err = call(http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": password,
	}, &login)
	if err != nil || status != http.StatusOK {
		t.Fatalf("login %s: status %d: %v", email, status, err)
	}
	if login.Token == "" {
		t.Fatalf("missing token in login response")
	}
	return login.User.ID, login.Token
}

// call sends a JSON request and decodes the data envelope into out.
func call(method, path, token string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest || out == nil {
		msg, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp.StatusCode, fmt.Errorf("server error: %s", strings.TrimSpace(string(msg)))
		}
		return resp.StatusCode, nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, json.Unmarshal(envelope.Data, out)
}
