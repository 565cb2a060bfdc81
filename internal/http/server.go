package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gotit/internal/cache"
	"gotit/internal/collection"
	"gotit/internal/core"
	"gotit/internal/log"
)

// Server exposes the collection over a JSON API. Projections and the
// category list are cached and invalidated through a collection
// subscription, so mutations from any caller drop stale entries.
type Server struct {
	http.Server
	manager     *collection.Manager
	logger      *log.Logger
	rateLimiter *rateLimiter

	projectionCache *cache.LRUCache[[]core.Group]
	categoryCache   *cache.LRUCache[[]string]
	cacheManager    *cache.Manager

	subID        int
	stopWatcher  chan struct{}
	watcherDone  chan struct{}
	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes and caches, returning a ready-to-run http.Server.
func NewServer(addr string, manager *collection.Manager, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		manager:         manager,
		logger:          logger.WithComponent(log.ComponentHTTP),
		rateLimiter:     newRateLimiter(),
		projectionCache: cache.NewLRUCache[[]core.Group](200, 5*time.Minute),
		categoryCache:   cache.NewLRUCache[[]string](1, 5*time.Minute),
		stopWatcher:     make(chan struct{}),
		watcherDone:     make(chan struct{}),
	}

	s.cacheManager = cache.NewManager(s.logger)
	s.cacheManager.Register(s.projectionCache)
	s.cacheManager.Register(s.categoryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /api/items", s.withSecurityHeaders(s.handleListItems))
	mux.HandleFunc("POST /api/items", s.withSecurityHeaders(s.handleCreateItem))
	mux.HandleFunc("PUT /api/items/{id}", s.withSecurityHeaders(s.handleUpdateItem))
	mux.HandleFunc("DELETE /api/items/{id}", s.withSecurityHeaders(s.handleDeleteItem))
	mux.HandleFunc("GET /api/categories", s.withSecurityHeaders(s.handleListCategories))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	s.Server.Addr = addr
	s.Server.Handler = log.RequestMiddleware(s.logger)(mux)

	// Drop cached projections whenever the collection changes, no matter
	// which caller made the change.
	subID, emissions := manager.Subscribe()
	s.subID = subID
	go s.watchCollection(emissions)

	return s
}

func (s *Server) watchCollection(emissions <-chan []core.Item) {
	defer close(s.watcherDone)
	for {
		select {
		case _, ok := <-emissions:
			if !ok {
				return
			}
			s.invalidate()
		case <-s.stopWatcher:
			return
		}
	}
}

func (s *Server) invalidate() {
	s.projectionCache.Purge()
	s.categoryCache.Purge()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		close(s.stopWatcher)
		<-s.watcherDone
		s.manager.Unsubscribe(s.subID)

		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers and rate limiting to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		// Apply rate limiting to mutating requests
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(r.Context(), "rate limit exceeded",
				log.FieldRemoteAddr, clientIP,
				log.FieldHTTPMethod, r.Method,
				log.FieldHTTPPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
