package state

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

// respServer speaks enough RESP2 for RedisStore: GET, SET with EX/PX/NX/XX,
// and DEL. HELLO is refused so the client stays on RESP2.
type respServer struct {
	ln net.Listener

	mu   sync.Mutex
	data map[string]string
	ttl  map[string]string
}

func newRESPServer(t *testing.T) *respServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &respServer{ln: ln, data: map[string]string{}, ttl: map[string]string{}}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *respServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *respServer) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		if _, err := io.WriteString(conn, s.exec(args)); err != nil {
			return
		}
	}
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "*") {
		return nil, fmt.Errorf("unexpected frame %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		head, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimRight(head, "\r\n")[1:])
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func bulk(v string) string {
	return fmt.Sprintf("$%d\r\n%s\r\n", len(v), v)
}

const nullBulk = "$-1\r\n"

func (s *respServer) exec(args []string) string {
	if len(args) == 0 {
		return "-ERR empty command\r\n"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToUpper(args[0]) {
	case "HELLO":
		return "-ERR unknown command 'HELLO'\r\n"
	case "CLIENT", "SELECT":
		return "+OK\r\n"
	case "PING":
		return "+PONG\r\n"
	case "GET":
		v, ok := s.data[args[1]]
		if !ok {
			return nullBulk
		}
		return bulk(v)
	case "SET":
		key, val := args[1], args[2]
		var mode, expire string
		for i := 3; i < len(args); i++ {
			switch opt := strings.ToUpper(args[i]); opt {
			case "NX", "XX":
				mode = opt
			case "EX", "PX":
				expire = opt + " " + args[i+1]
				i++
			}
		}
		_, exists := s.data[key]
		if (mode == "XX" && !exists) || (mode == "NX" && exists) {
			return nullBulk
		}
		s.data[key] = val
		s.ttl[key] = expire
		return "+OK\r\n"
	case "DEL":
		n := 0
		for _, k := range args[1:] {
			if _, ok := s.data[k]; ok {
				delete(s.data, k)
				delete(s.ttl, k)
				n++
			}
		}
		return fmt.Sprintf(":%d\r\n", n)
	default:
		return fmt.Sprintf("-ERR unknown command '%s'\r\n", args[0])
	}
}

func (s *respServer) expiry(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.ttl[key]
	return v, ok
}

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *respServer) {
	t.Helper()

	srv := newRESPServer(t)
	client := redis.NewClient(&redis.Options{
		Addr:             srv.ln.Addr().String(),
		DisableIndentity: true,
		MaxRetries:       -1,
	})
	store := NewRedisStoreFromClient(client, "test:", ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, srv
}

func TestRedisStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, srv := newTestRedisStore(t, time.Hour)

	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() error = %v, want ErrSessionNotFound", err)
	}

	sess := NewSession("k", "biz_1", "sys", time.Now())
	if err := store.Update(ctx, sess); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Update() before Create error = %v, want ErrSessionNotFound", err)
	}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if exp, ok := srv.expiry("test:k"); !ok || exp != "EX 3600" {
		t.Fatalf("expiry = %q, want EX 3600", exp)
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.TenantID != "biz_1" || len(got.History) != 1 {
		t.Fatalf("Get() = %#v", got)
	}

	got.AddToCart(contractx.LineItem{Name: "Fan", Quantity: 2})
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	again, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() after Update error = %v", err)
	}
	if len(again.Cart) != 1 || again.Cart[0].Quantity != 2 {
		t.Fatalf("cart = %#v", again.Cart)
	}

	if err := store.Evict(ctx, "k"); err != nil {
		t.Fatalf("Evict() error = %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() after Evict error = %v, want ErrSessionNotFound", err)
	}
	if err := store.Update(ctx, again); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Update() after Evict error = %v, want ErrSessionNotFound", err)
	}
}

func TestRedisStoreWithoutTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, srv := newTestRedisStore(t, 0)

	if err := store.Create(ctx, NewSession("k", "biz_1", "sys", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if exp, _ := srv.expiry("test:k"); exp != "" {
		t.Fatalf("expiry = %q, want none", exp)
	}
}

func TestRedisStoreRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	store, _ := newTestRedisStore(t, time.Hour)
	if _, err := store.Get(context.Background(), "  "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Get() error = %v, want ErrInvalidSession", err)
	}
}

func TestRedisStoreServerDown(t *testing.T) {
	t.Parallel()

	store, srv := newTestRedisStore(t, time.Hour)
	_ = srv.ln.Close()

	_, err := store.Get(context.Background(), "k")
	if err == nil || errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() error = %v, want transport error", err)
	}
}
