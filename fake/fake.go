// Package fake provides an in-memory implementation of the portal REST API for testing.
//
// Use fake.New() in tests to exercise the real HTTP stack without a backend:
//
//	srv := fake.New(fake.WithUser("Ana", "ana@example.com", "secret", portal.RoleAdmin))
//	defer srv.Close()
//	client := api.New(srv.URL)
//
// Tokens are HS256 JWTs carrying the id, name, email, role and exp claims.
package fake

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	portal "github.com/chimerakang/portal-go"
)

// Option configures the fake server.
type Option func(*state)

type account struct {
	user portal.User
	hash []byte
}

func (a *account) setPassword(pw string) {
	// MinCost keeps test logins fast; the fake never guards real secrets.
	a.hash, _ = bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
}

func (a *account) checkPassword(pw string) bool {
	return bcrypt.CompareHashAndPassword(a.hash, []byte(pw)) == nil
}

type failure struct {
	status  int
	message string
}

type state struct {
	mu          sync.Mutex
	secret      []byte
	ttl         time.Duration
	now         func() time.Time
	users       map[int64]*account
	documents   map[int64]*portal.Document
	images      map[int64]*portal.Image
	files       map[string][]byte
	revoked     map[string]bool
	undeletable map[int64]bool
	failures    map[string]failure
	hits        map[string]int
	legacyBulk  bool
	nextID      int64
}

// WithUser adds an account.
func WithUser(name, email, password string, role portal.Role) Option {
	return func(s *state) {
		s.addUser(name, email, password, role)
	}
}

// WithDocument adds a document owned by userID.
func WithDocument(userID int64, fileName, description string) Option {
	return func(s *state) {
		s.nextID++
		s.documents[s.nextID] = &portal.Document{
			ID: s.nextID, UserID: userID, FileName: fileName, Description: description,
			FileType: "application/pdf", Path: fmt.Sprintf("/uploads/documents/%d.pdf", s.nextID),
			CreatedAt: s.now(),
		}
	}
}

// WithImage adds an image owned by userID.
func WithImage(userID int64, fileName, description string) Option {
	return func(s *state) {
		s.nextID++
		s.images[s.nextID] = &portal.Image{
			ID: s.nextID, UserID: userID, FileName: fileName, Description: description,
			FileType: "image/png", Path: fmt.Sprintf("/uploads/images/%d.png", s.nextID),
			CreatedAt: s.now(),
		}
	}
}

// WithTokenTTL sets the lifetime of issued tokens. Default: 1 hour.
func WithTokenTTL(d time.Duration) Option {
	return func(s *state) { s.ttl = d }
}

// WithSecret sets the HS256 signing secret.
func WithSecret(secret []byte) Option {
	return func(s *state) { s.secret = secret }
}

// WithUndeletable makes the bulk endpoints refuse the given ids.
func WithUndeletable(ids ...int64) Option {
	return func(s *state) {
		for _, id := range ids {
			s.undeletable[id] = true
		}
	}
}

// WithLegacyBulk makes bulk deletes answer without per-id results.
func WithLegacyBulk() Option {
	return func(s *state) { s.legacyBulk = true }
}

// Server is a running fake API.
type Server struct {
	*httptest.Server
	s *state
}

// New starts a fake API server. Call Close when done.
func New(opts ...Option) *Server {
	s := &state{
		secret:      []byte("fake-portal-secret"),
		ttl:         time.Hour,
		now:         time.Now,
		users:       make(map[int64]*account),
		documents:   make(map[int64]*portal.Document),
		images:      make(map[int64]*portal.Image),
		files:       make(map[string][]byte),
		revoked:     make(map[string]bool),
		undeletable: make(map[int64]bool),
		failures:    make(map[string]failure),
		hits:        make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}
	return &Server{Server: httptest.NewServer(s.router()), s: s}
}

// Handler returns the gin engine serving the API, for mounting without a listener.
func (srv *Server) Handler() http.Handler { return srv.Config.Handler }

// IssueToken signs a token for userID valid for ttl (negative for an expired token).
func (srv *Server) IssueToken(userID int64, ttl time.Duration) string {
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	a, ok := srv.s.users[userID]
	if !ok {
		return ""
	}
	return srv.s.issue(a.user, ttl)
}

// UserID returns the id of the account with email, or 0.
func (srv *Server) UserID(email string) int64 {
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	for id, a := range srv.s.users {
		if a.user.Email == email {
			return id
		}
	}
	return 0
}

// Fail makes the next requests to method and path answer with status.
// A zero status removes the failure.
func (srv *Server) Fail(method, path string, status int, message string) {
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	key := method + " " + path
	if status == 0 {
		delete(srv.s.failures, key)
		return
	}
	srv.s.failures[key] = failure{status: status, message: message}
}

// Hits returns how many requests reached method and path.
func (srv *Server) Hits(method, path string) int {
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	return srv.s.hits[method+" "+path]
}

// Counts returns the number of users, documents and images held.
func (srv *Server) Counts() (users, documents, images int) {
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	return len(srv.s.users), len(srv.s.documents), len(srv.s.images)
}

func (s *state) addUser(name, email, password string, role portal.Role) *account {
	s.nextID++
	a := &account{user: portal.User{ID: s.nextID, Name: name, Email: email, Role: role, CreatedAt: s.now()}}
	a.setPassword(password)
	s.users[a.user.ID] = a
	return a
}

func (s *state) issue(u portal.User, ttl time.Duration) string {
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  string(u.Role),
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"jti":   strconv.FormatInt(now.UnixNano(), 36),
	})
	signed, _ := tok.SignedString(s.secret)
	return signed
}

const ctxUser = "fake_user"

func (s *state) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:    []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(s.track)

	users := r.Group("/users")
	users.POST("/login", s.login)
	users.POST("/register", s.register)
	users.POST("/logout", s.requireAuth, s.logout)
	users.GET("/me", s.requireAuth, s.me)
	users.GET("", s.listUsers)
	users.POST("", s.addUserHandler)
	users.DELETE("/bulk", s.bulkUsers)
	users.GET("/:id", s.requireAuth, s.getUser)
	users.PUT("/:id", s.optionalAuth, s.updateUser)
	users.PATCH("/:id/password", s.requireAuth, s.updatePassword)
	users.DELETE("/:id", s.optionalAuth, s.deleteUser)

	docs := r.Group("/documents")
	docs.GET("", s.listDocuments)
	docs.POST("/upload", s.optionalAuth, s.uploadDocument)
	docs.GET("/images", s.listImages)
	docs.POST("/image", s.optionalAuth, s.uploadImage)
	docs.DELETE("/bulk", s.bulkDocuments)
	docs.PATCH("/:id", s.updateDocument)
	docs.DELETE("/:id", s.deleteDocument)

	r.GET("/uploads/*file", s.serveFile)

	imgs := r.Group("/images")
	imgs.DELETE("/bulk", s.bulkImages)
	imgs.PATCH("/:id", s.updateImage)
	imgs.DELETE("/:id", s.deleteImage)

	return r
}

// --- middleware ---

func (s *state) track(c *gin.Context) {
	key := c.Request.Method + " " + c.Request.URL.Path
	s.mu.Lock()
	s.hits[key]++
	f, failing := s.failures[key]
	s.mu.Unlock()

	if failing {
		c.AbortWithStatusJSON(f.status, gin.H{"message": f.message})
		return
	}
	c.Next()
}

func (s *state) authenticate(c *gin.Context) (*account, bool) {
	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if raw == "" || raw == c.GetHeader("Authorization") {
		return nil, false
	}
	mc := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, mc, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, false
	}
	idf, _ := mc["id"].(float64)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked[raw] {
		return nil, false
	}
	a, ok := s.users[int64(idf)]
	return a, ok
}

func (s *state) requireAuth(c *gin.Context) {
	a, ok := s.authenticate(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	c.Set(ctxUser, a)
	c.Next()
}

func (s *state) optionalAuth(c *gin.Context) {
	if a, ok := s.authenticate(c); ok {
		c.Set(ctxUser, a)
	}
	c.Next()
}

func caller(c *gin.Context) *account {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	return v.(*account)
}

// --- helpers ---

func reply(c *gin.Context, status int, message string, data any) {
	body := gin.H{"message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func invalid(c *gin.Context, message string, fields ...portal.FieldError) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message, "fieldErrors": fields})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		reply(c, http.StatusBadRequest, "Invalid id", nil)
		return 0, false
	}
	return id, true
}

type pageQuery struct {
	page, size int
	search     string
	sortBy     string
	desc       bool
}

func parsePage(c *gin.Context) pageQuery {
	q := pageQuery{page: 1, size: portal.DefaultPageSize}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		q.page = v
	}
	if v, err := strconv.Atoi(c.Query("pageSize")); err == nil && v > 0 {
		q.size = v
	}
	q.search = strings.ToLower(strings.TrimSpace(c.Query("search")))
	q.sortBy = c.Query("sortBy")
	q.desc = strings.EqualFold(c.Query("sortOrder"), string(portal.SortDesc))
	return q
}

func paginate[T any](items []T, q pageQuery) portal.PagedList[T] {
	total := len(items)
	start := (q.page - 1) * q.size
	if start > total {
		start = total
	}
	end := start + q.size
	if end > total {
		end = total
	}
	p := portal.PagedList[T]{Items: items[start:end], Total: total, Page: q.page, PageSize: q.size}
	p.Normalize()
	if p.Items == nil {
		p.Items = []T{}
	}
	return p
}

func sortBy[T any](items []T, desc bool, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

type bulkRequest struct {
	IDs []int64 `json:"ids"`
}

// bulk deletes ids from m, skipping undeletable and unknown ones.
func bulk[T any](s *state, m map[int64]T, ids []int64) portal.BulkDeleteResult {
	res := portal.BulkDeleteResult{DeletedIDs: []int64{}, NotDeletedIDs: []int64{}}
	for _, id := range ids {
		if _, ok := m[id]; !ok || s.undeletable[id] {
			res.NotDeletedIDs = append(res.NotDeletedIDs, id)
			continue
		}
		delete(m, id)
		res.DeletedIDs = append(res.DeletedIDs, id)
	}
	return res
}

func (s *state) bulkReply(c *gin.Context, res portal.BulkDeleteResult) {
	if s.legacyBulk {
		reply(c, http.StatusOK, "Deleted", nil)
		return
	}
	reply(c, http.StatusOK, fmt.Sprintf("%d deleted", len(res.DeletedIDs)), res)
}

// --- auth ---

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *state) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		invalid(c, "Invalid data",
			portal.FieldError{Field: "email", Message: "Email is required"},
			portal.FieldError{Field: "password", Message: "Password is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.users {
		if strings.EqualFold(a.user.Email, req.Email) && a.checkPassword(req.Password) {
			reply(c, http.StatusOK, "Login successful", gin.H{"id": s.issue(a.user, s.ttl), "userData": a.user})
			return
		}
	}
	c.JSON(http.StatusUnauthorized, gin.H{
		"message":     "Invalid credentials",
		"fieldErrors": []portal.FieldError{{Field: "password", Message: "Invalid email or password"}},
	})
}

func (s *state) register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" || req.Name == "" {
		invalid(c, "Invalid data", portal.FieldError{Field: "email", Message: "Email, password and name are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(req.Email, 0) {
		invalid(c, "Email already registered", portal.FieldError{Field: "email", Message: "Email already registered"})
		return
	}
	a := s.addUser(req.Name, req.Email, req.Password, portal.RoleUser)
	reply(c, http.StatusCreated, "User registered", gin.H{"id": s.issue(a.user, s.ttl), "userData": a.user})
}

func (s *state) emailTaken(email string, except int64) bool {
	for id, a := range s.users {
		if id != except && strings.EqualFold(a.user.Email, email) {
			return true
		}
	}
	return false
}

func (s *state) logout(c *gin.Context) {
	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	s.mu.Lock()
	s.revoked[raw] = true
	s.mu.Unlock()
	reply(c, http.StatusOK, "Logged out", nil)
}

func (s *state) me(c *gin.Context) {
	s.mu.Lock()
	u := caller(c).user
	s.mu.Unlock()
	reply(c, http.StatusOK, "OK", u)
}

// --- users ---

func (s *state) listUsers(c *gin.Context) {
	q := parsePage(c)
	role := c.Query("role")

	s.mu.Lock()
	all := make([]portal.User, 0, len(s.users))
	for _, a := range s.users {
		u := a.user
		if role != "" && string(u.Role) != role {
			continue
		}
		if q.search != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Email), q.search) {
			continue
		}
		all = append(all, u)
	}
	s.mu.Unlock()

	less := func(a, b portal.User) bool { return a.ID < b.ID }
	switch q.sortBy {
	case "name":
		less = func(a, b portal.User) bool { return a.Name < b.Name }
	case "email":
		less = func(a, b portal.User) bool { return a.Email < b.Email }
	case "role":
		less = func(a, b portal.User) bool { return a.Role < b.Role }
	case "created_at":
		less = func(a, b portal.User) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	sortBy(all, q.desc, less)
	reply(c, http.StatusOK, "OK", paginate(all, q))
}

func (s *state) getUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, found := s.users[id]
	if !found {
		reply(c, http.StatusNotFound, "User not found", nil)
		return
	}
	reply(c, http.StatusOK, "OK", a.user)
}

func (s *state) addUserHandler(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Name == "" || req.Password == "" {
		invalid(c, "Invalid data", portal.FieldError{Field: "email", Message: "Email, password and name are required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(req.Email, 0) {
		invalid(c, "Email already registered", portal.FieldError{Field: "email", Message: "Email already registered"})
		return
	}
	a := s.addUser(req.Name, req.Email, req.Password, portal.RoleUser)
	reply(c, http.StatusCreated, "User created", a.user)
}

func (s *state) updateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "Invalid data")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, found := s.users[id]
	if !found {
		reply(c, http.StatusNotFound, "User not found", nil)
		return
	}
	if req.Email != "" && s.emailTaken(req.Email, id) {
		invalid(c, "Email already registered", portal.FieldError{Field: "email", Message: "Email already registered"})
		return
	}
	if req.Name != "" {
		a.user.Name = req.Name
	}
	if req.Email != "" {
		a.user.Email = req.Email
	}

	if self := caller(c); self != nil && self.user.ID == id {
		reply(c, http.StatusOK, "User updated", gin.H{"token": s.issue(a.user, s.ttl), "userData": a.user})
		return
	}
	reply(c, http.StatusOK, "User updated", a.user)
}

type passwordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

func (s *state) updatePassword(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.NewPassword == "" {
		invalid(c, "Invalid data", portal.FieldError{Field: "newPassword", Message: "New password is required"})
		return
	}
	self := caller(c)
	if self.user.ID != id {
		reply(c, http.StatusForbidden, "Forbidden", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !self.checkPassword(req.Password) {
		invalid(c, "Invalid password", portal.FieldError{Field: "password", Message: "Incorrect password"})
		return
	}
	self.setPassword(req.NewPassword)
	reply(c, http.StatusOK, "Password updated", nil)
}

func (s *state) deleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req passwordRequest
	_ = c.ShouldBindJSON(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	a, found := s.users[id]
	if !found {
		reply(c, http.StatusNotFound, "User not found", nil)
		return
	}
	if self := caller(c); self != nil && self.user.ID == id && !a.checkPassword(req.Password) {
		invalid(c, "Invalid password", portal.FieldError{Field: "password", Message: "Incorrect password"})
		return
	}
	delete(s.users, id)
	c.Status(http.StatusNoContent)
}

func (s *state) bulkUsers(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		invalid(c, "No ids given")
		return
	}
	s.mu.Lock()
	res := bulk(s, s.users, req.IDs)
	s.mu.Unlock()
	s.bulkReply(c, res)
}

// --- documents and images ---

func withOwner(s *state, include bool, userID int64) *portal.User {
	if !include {
		return nil
	}
	if a, ok := s.users[userID]; ok {
		u := a.user
		return &u
	}
	return nil
}

func ownerFilter(c *gin.Context) (int64, bool) {
	v := c.Query("user_id")
	if v == "" {
		return 0, false
	}
	id, _ := strconv.ParseInt(v, 10, 64)
	return id, true
}

func (s *state) listDocuments(c *gin.Context) {
	q := parsePage(c)
	owner, byOwner := ownerFilter(c)
	include := c.Query("include_user") == "true"

	s.mu.Lock()
	all := make([]portal.Document, 0, len(s.documents))
	for _, d := range s.documents {
		if byOwner && d.UserID != owner {
			continue
		}
		if q.search != "" && !strings.Contains(strings.ToLower(d.FileName+" "+d.Description), q.search) {
			continue
		}
		doc := *d
		doc.User = withOwner(s, include, d.UserID)
		all = append(all, doc)
	}
	s.mu.Unlock()

	sortBy(all, q.desc, fileLess[portal.Document](q.sortBy,
		func(d portal.Document) (int64, string, time.Time) { return d.ID, d.FileName, d.CreatedAt }))
	reply(c, http.StatusOK, "OK", paginate(all, q))
}

func (s *state) listImages(c *gin.Context) {
	q := parsePage(c)
	owner, byOwner := ownerFilter(c)
	include := c.Query("include_user") == "true"

	s.mu.Lock()
	all := make([]portal.Image, 0, len(s.images))
	for _, im := range s.images {
		if byOwner && im.UserID != owner {
			continue
		}
		if q.search != "" && !strings.Contains(strings.ToLower(im.FileName+" "+im.Description), q.search) {
			continue
		}
		img := *im
		img.User = withOwner(s, include, im.UserID)
		all = append(all, img)
	}
	s.mu.Unlock()

	sortBy(all, q.desc, fileLess[portal.Image](q.sortBy,
		func(i portal.Image) (int64, string, time.Time) { return i.ID, i.FileName, i.CreatedAt }))
	reply(c, http.StatusOK, "OK", paginate(all, q))
}

func fileLess[T any](key string, fields func(T) (int64, string, time.Time)) func(a, b T) bool {
	return func(a, b T) bool {
		ai, an, at := fields(a)
		bi, bn, bt := fields(b)
		switch key {
		case "file_name":
			return an < bn
		case "created_at":
			return at.Before(bt)
		}
		return ai < bi
	}
}

type upload struct {
	fileName, description, fileType, filename string
	userID                                     int64
	content                                    []byte
}

func parseUpload(c *gin.Context, accept func(string) bool, kind string) (upload, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		invalid(c, "File is required", portal.FieldError{Field: "file", Message: "File is required"})
		return upload{}, false
	}
	ct := fh.Header.Get("Content-Type")
	if !accept(ct) {
		invalid(c, "Invalid file type", portal.FieldError{Field: "file", Message: "Only " + kind + " files are allowed"})
		return upload{}, false
	}
	if fh.Size > portal.MaxUploadSize {
		invalid(c, "File too large", portal.FieldError{Field: "file", Message: "Maximum size is 10MB"})
		return upload{}, false
	}
	f, err := fh.Open()
	if err != nil {
		reply(c, http.StatusInternalServerError, "Could not read file", nil)
		return upload{}, false
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		reply(c, http.StatusInternalServerError, "Could not read file", nil)
		return upload{}, false
	}
	u := upload{
		fileName:    c.PostForm("file_name"),
		description: c.PostForm("description"),
		fileType:    ct,
		filename:    fh.Filename,
		content:     content,
	}
	if u.fileName == "" {
		u.fileName = fh.Filename
	}
	u.userID, _ = strconv.ParseInt(c.PostForm("user_id"), 10, 64)
	if self := caller(c); u.userID == 0 && self != nil {
		u.userID = self.user.ID
	}
	return u, true
}

func (s *state) uploadDocument(c *gin.Context) {
	u, ok := parseUpload(c, func(ct string) bool { return ct == "application/pdf" }, "PDF")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	d := &portal.Document{
		ID: s.nextID, UserID: u.userID, FileName: u.fileName, Description: u.description,
		FileType: u.fileType, Path: fmt.Sprintf("/uploads/documents/%d-%s", s.nextID, u.filename),
		CreatedAt: s.now(),
	}
	s.documents[d.ID] = d
	s.files[d.Path] = u.content
	reply(c, http.StatusCreated, "Document uploaded", d)
}

func (s *state) uploadImage(c *gin.Context) {
	u, ok := parseUpload(c, func(ct string) bool { return strings.HasPrefix(ct, "image/") }, "image")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	im := &portal.Image{
		ID: s.nextID, UserID: u.userID, FileName: u.fileName, Description: u.description,
		FileType: u.fileType, Path: fmt.Sprintf("/uploads/images/%d-%s", s.nextID, u.filename),
		CreatedAt: s.now(),
	}
	s.images[im.ID] = im
	s.files[im.Path] = u.content
	reply(c, http.StatusCreated, "Image uploaded", im)
}

// serveFile answers GET on a stored file path. Files whose document or image
// was deleted are gone; seeded files without uploaded content return their
// file name as the body.
func (s *state) serveFile(c *gin.Context) {
	path := c.Request.URL.Path
	s.mu.Lock()
	defer s.mu.Unlock()

	fileType, name, found := "", "", false
	for _, d := range s.documents {
		if d.Path == path {
			fileType, name, found = d.FileType, d.FileName, true
			break
		}
	}
	for _, im := range s.images {
		if !found && im.Path == path {
			fileType, name, found = im.FileType, im.FileName, true
		}
	}
	if !found {
		reply(c, http.StatusNotFound, "File not found", nil)
		return
	}
	body, ok := s.files[path]
	if !ok {
		body = []byte(name)
	}
	c.Data(http.StatusOK, fileType, body)
}

type fileUpdate struct {
	FileName    *string `json:"file_name"`
	Description *string `json:"description"`
}

func (s *state) updateDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req fileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "Invalid data")
		return
	}
	if req.FileName != nil && strings.TrimSpace(*req.FileName) == "" {
		invalid(c, "Invalid data", portal.FieldError{Field: "file_name", Message: "File name cannot be empty"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, found := s.documents[id]
	if !found {
		reply(c, http.StatusNotFound, "Document not found", nil)
		return
	}
	if req.FileName != nil {
		d.FileName = *req.FileName
	}
	if req.Description != nil {
		d.Description = *req.Description
	}
	reply(c, http.StatusOK, "Document updated", d)
}

func (s *state) updateImage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req fileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "Invalid data")
		return
	}
	if req.FileName != nil && strings.TrimSpace(*req.FileName) == "" {
		invalid(c, "Invalid data", portal.FieldError{Field: "file_name", Message: "File name cannot be empty"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	im, found := s.images[id]
	if !found {
		reply(c, http.StatusNotFound, "Image not found", nil)
		return
	}
	if req.FileName != nil {
		im.FileName = *req.FileName
	}
	if req.Description != nil {
		im.Description = *req.Description
	}
	c.Status(http.StatusNoContent)
}

func (s *state) deleteDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.documents[id]; !found {
		reply(c, http.StatusNotFound, "Document not found", nil)
		return
	}
	delete(s.documents, id)
	reply(c, http.StatusOK, "Document deleted", nil)
}

func (s *state) deleteImage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.images[id]; !found {
		reply(c, http.StatusNotFound, "Image not found", nil)
		return
	}
	delete(s.images, id)
	c.Status(http.StatusNoContent)
}

func (s *state) bulkDocuments(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		invalid(c, "No ids given")
		return
	}
	s.mu.Lock()
	res := bulk(s, s.documents, req.IDs)
	s.mu.Unlock()
	s.bulkReply(c, res)
}

func (s *state) bulkImages(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		invalid(c, "No ids given")
		return
	}
	s.mu.Lock()
	res := bulk(s, s.images, req.IDs)
	s.mu.Unlock()
	s.bulkReply(c, res)
}
