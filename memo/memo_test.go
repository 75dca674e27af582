package memo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jonwraymond/reproducible/cache"
	"github.com/jonwraymond/reproducible/digest"
	"github.com/jonwraymond/reproducible/observe"
	"github.com/jonwraymond/reproducible/value"
	"github.com/jonwraymond/reproducible/value/tensor"
)

// counterFunc returns the number of times it has run before this call.
func counterFunc() (Func, *atomic.Int64) {
	var n atomic.Int64
	return func(context.Context, Args) (any, error) {
		return int(n.Add(1) - 1), nil
	}, &n
}

func TestMemoizer_CounterScenario(t *testing.T) {
	ctx := context.Background()
	fn, _ := counterFunc()
	f := New("f", fn, WithStore(cache.NewMemoryStore()))

	steps := []struct {
		name string
		args Args
		want int
	}{
		{"f(0)", Pos(0), 0},
		{"f(0) again", Pos(0), 0},
		{"f(1)", Pos(1), 1},
		{"f(bar)", Pos("bar"), 2},
		{"f(x=1)", Kw("x", 1), 3},
		{"f(x=1) again", Kw("x", 1), 3},
	}
	for _, s := range steps {
		got, err := f.Call(ctx, s.args)
		require.NoError(t, err, s.name)
		assert.Equal(t, s.want, got, s.name)
	}
}

func TestMemoizer_KeyFormat(t *testing.T) {
	f := New("f", nil, WithIdentity("id"), WithStore(cache.NewMemoryStore()))

	key, err := f.Key(Pos(1, "foo").With("z", 2).With("b", 1.5))
	require.NoError(t, err)

	want := "f:" + digest.Hex(digest.SHA256, []byte("id")) +
		"[arg_0=int:1," +
		"arg_1=2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae," +
		"kwarg_b=float64:1.5," +
		"kwarg_z=int:2]"
	assert.Equal(t, want, key)

	empty, err := f.Key(Args{})
	require.NoError(t, err)
	assert.Equal(t, "f:"+digest.Hex(digest.SHA256, []byte("id"))+"[]", empty)
}

func TestMemoizer_KeyProperties(t *testing.T) {
	f := New("f", nil, WithIdentity("id"))
	key := func(a Args) string {
		k, err := f.Key(a)
		require.NoError(t, err)
		return k
	}

	t.Run("keyword order is irrelevant", func(t *testing.T) {
		a := Args{Keyword: map[string]any{"a": 1, "b": 2}}
		b := Kw("b", 2).With("a", 1)
		assert.Equal(t, key(a), key(b))
	})
	t.Run("positional order matters", func(t *testing.T) {
		assert.NotEqual(t, key(Pos(1, 2)), key(Pos(2, 1)))
	})
	t.Run("wrapped argument equals raw", func(t *testing.T) {
		assert.Equal(t, key(Pos(1)), key(Pos(value.NewObject(1))))
	})
	t.Run("numeric kinds do not collide", func(t *testing.T) {
		assert.NotEqual(t, key(Pos(1)), key(Pos(1.0)))
		assert.NotEqual(t, key(Pos(1)), key(Pos("1")))
	})
	t.Run("identity changes the key", func(t *testing.T) {
		other := New("f", nil, WithIdentity("id2"))
		k, err := other.Key(Pos(1))
		require.NoError(t, err)
		assert.NotEqual(t, key(Pos(1)), k)
	})
	t.Run("digest changes the key", func(t *testing.T) {
		other := New("f", nil, WithIdentity("id"), WithDigest(digest.XXHash64))
		k, err := other.Key(Pos("foo"))
		require.NoError(t, err)
		assert.NotEqual(t, key(Pos("foo")), k)
	})
}

func TestMemoizer_IgnoredArguments(t *testing.T) {
	ctx := context.Background()
	var calls int
	var seen []any
	f := New("render", func(_ context.Context, a Args) (any, error) {
		calls++
		seen = append(seen, a.Arg(1))
		return a.Arg(0).(string) + "!", nil
	}, WithStore(cache.NewMemoryStore()))

	k1, err := f.Key(Pos("doc", value.Ignore("verbose")))
	require.NoError(t, err)
	k2, err := f.Key(Pos("doc", value.Ignore("quiet")))
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	v, err := f.Call(ctx, Pos("doc", value.Ignore("verbose")))
	require.NoError(t, err)
	assert.Equal(t, "doc!", v)

	v, err = f.Call(ctx, Pos("doc", value.Ignore("quiet")))
	require.NoError(t, err)
	assert.Equal(t, "doc!", v)

	assert.Equal(t, 1, calls)
	assert.Equal(t, []any{"verbose"}, seen)
}

func TestMemoizer_IgnoredPointerIsShared(t *testing.T) {
	type config struct{ Hits int }
	cfg := &config{}
	f := New("touch", func(_ context.Context, a Args) (any, error) {
		a.Arg(0).(*config).Hits++
		return nil, nil
	}, WithStore(cache.NewMemoryStore()))

	_, err := f.Call(context.Background(), Pos(value.Ignore(cfg)))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Hits)
}

func TestMemoizer_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	boom := errors.New("boom")
	var calls int
	f := New("flaky", func(context.Context, Args) (any, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return "ok", nil
	}, WithStore(store))

	_, err := f.Call(ctx, Pos(1))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Len())

	v, err := f.Call(ctx, Pos(1))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestMemoizer_FingerprintErrorsPropagate(t *testing.T) {
	fn, n := counterFunc()
	f := New("read", fn, WithStore(cache.NewMemoryStore()))

	_, err := f.Call(context.Background(), Pos(value.Path(filepath.Join(t.TempDir(), "missing"))))
	require.ErrorIs(t, err, value.ErrNotFound)
	assert.Zero(t, n.Load())
}

func TestMemoizer_FileArgument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo"), 0o644))

	var calls int
	f := New("size", func(_ context.Context, a Args) (any, error) {
		calls++
		b, err := os.ReadFile(string(a.Arg(0).(value.Path)))
		return len(b), err
	}, WithStore(cache.NewMemoryStore()))

	v, err := f.Call(ctx, Pos(value.Path(path)))
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	require.NoError(t, os.WriteFile(path, []byte("foobar"), 0o644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	v, err = f.Call(ctx, Pos(value.Path(path)))
	require.NoError(t, err)
	assert.Equal(t, 6, v)
	assert.Equal(t, 2, calls)
}

func TestMemoizer_FileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	open := func() *cache.FileStore {
		s, err := cache.NewFileStore(root)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	fn1, n1 := counterFunc()
	first := New("f", fn1, WithIdentity("v1"), WithStore(open()))
	_, err := first.Call(ctx, Pos(map[string]int{"b": 2, "a": 1}))
	require.NoError(t, err)

	fn2, n2 := counterFunc()
	second := New("f", fn2, WithIdentity("v1"), WithStore(open()))
	v, err := second.Call(ctx, Pos(map[string]int{"a": 1, "b": 2}))
	require.NoError(t, err)

	assert.Equal(t, 0, v)
	assert.Equal(t, int64(1), n1.Load())
	assert.Zero(t, n2.Load())
}

func TestMemoizer_FileStoreHitMatchesMiss(t *testing.T) {
	ctx := context.Background()
	s, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	f := New("train", func(context.Context, Args) (any, error) {
		return map[string]any{
			"epochs":  3,
			"history": []any{0.5, 0.25},
			"at":      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		}, nil
	}, WithStore(s))

	miss, err := f.Call(ctx, Pos("cfg"))
	require.NoError(t, err)
	hit, err := f.Call(ctx, Pos("cfg"))
	require.NoError(t, err)

	assert.Equal(t, miss, hit)
	epochs, ok := hit.(map[string]any)["epochs"].(int)
	require.True(t, ok)
	assert.Equal(t, 3, epochs)
}

func TestMemoizer_FileStoreUsesHashedEntryNames(t *testing.T) {
	s, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	fn, _ := counterFunc()
	f := New("f", fn, WithIdentity("v1"), WithStore(s))
	_, err = f.Call(context.Background(), Pos(1))
	require.NoError(t, err)

	key, err := f.Key(Pos(1))
	require.NoError(t, err)
	require.Contains(t, key, ":")

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, cache.EntryName(key), entries[0].Name())
	assert.True(t, strings.HasPrefix(entries[0].Name(), "k-"))
}

func TestMemoizer_ActiveStore(t *testing.T) {
	prev := cache.Active()
	t.Cleanup(func() { _ = cache.SetActive(prev) })

	fn, n := counterFunc()
	f := New("f", fn)
	ctx := context.Background()

	first := cache.NewMemoryStore()
	require.NoError(t, cache.SetActive(first))
	_, _ = f.Call(ctx, Pos(1))
	_, _ = f.Call(ctx, Pos(1))
	assert.Equal(t, int64(1), n.Load())
	assert.Equal(t, 1, first.Len())

	// A fresh active store starts empty; nothing migrates.
	require.NoError(t, cache.SetActive(cache.NewMemoryStore()))
	v, err := f.Call(ctx, Pos(1))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestMemoizer_ConcurrentCallsRunOnce(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	f := New("slow", func(context.Context, Args) (any, error) {
		calls.Add(1)
		<-release
		return "done", nil
	}, WithStore(cache.NewMemoryStore()))

	const callers = 16
	var wg sync.WaitGroup
	results := make([]any, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.Call(context.Background(), Pos("x"))
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "done", r)
	}
}

func TestMemoizer_CanceledCallerDoesNotFailFollowers(t *testing.T) {
	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	f := New("slow", func(ctx context.Context, _ Args) (any, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
			return "done", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, WithStore(cache.NewMemoryStore()))

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := f.Call(leaderCtx, Pos("x"))
		leaderErr <- err
	}()
	<-started

	follower := make(chan any, 1)
	go func() {
		v, err := f.Call(context.Background(), Pos("x"))
		assert.NoError(t, err)
		follower <- v
	}()
	time.Sleep(10 * time.Millisecond)

	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	assert.Equal(t, "done", <-follower)
	assert.Equal(t, int64(1), calls.Load())
}

func TestMemoizer_SerializationErrorPropagates(t *testing.T) {
	s, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	f := New("chan", func(context.Context, Args) (any, error) {
		return make(chan int), nil
	}, WithStore(s))

	_, err = f.Call(context.Background(), Pos(1))
	require.ErrorIs(t, err, value.ErrSerialization)
}

func TestMemoizer_TensorResults(t *testing.T) {
	reg := value.NewRegistry()
	require.NoError(t, tensor.Register(reg))

	s, err := cache.NewFileStore(t.TempDir(), cache.WithRegistry(reg))
	require.NoError(t, err)
	defer s.Close()

	var calls int
	f := New("ones", func(_ context.Context, a Args) (any, error) {
		calls++
		n := a.Arg(0).(int)
		data := make([]float64, n*n)
		for i := range data {
			data[i] = 1
		}
		return tensor.New(data, n, n)
	}, WithStore(s), WithRegistry(reg))

	ctx := context.Background()
	first, err := f.Call(ctx, Pos(3))
	require.NoError(t, err)
	second, err := f.Call(ctx, Pos(3))
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.True(t, first.(tensor.Tensor).Equal(second.(tensor.Tensor)))
}

func TestMemoizer_Middleware(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	metrics, err := observe.NewMetrics(noopMeter())
	require.NoError(t, err)
	mw := observe.NewMiddleware(observe.NewTracer(tp.Tracer("test")), metrics, nil)

	fn, _ := counterFunc()
	f := New("f", fn, WithStore(cache.NewMemoryStore()), WithMiddleware(mw))
	ctx := context.Background()
	_, _ = f.Call(ctx, Pos(1))
	_, _ = f.Call(ctx, Pos(1))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	hits := make([]bool, 0, 2)
	for _, s := range spans {
		assert.Equal(t, "memo.call.f", s.Name())
		for _, a := range s.Attributes() {
			if a.Key == "memo.hit" {
				hits = append(hits, a.Value.AsBool())
			}
		}
	}
	assert.Equal(t, []bool{false, true}, hits)
}

func TestMemoize(t *testing.T) {
	fn, n := counterFunc()
	f := Memoize("f", fn, WithStore(cache.NewMemoryStore()))
	_, _ = f(context.Background(), Pos(1))
	_, _ = f(context.Background(), Pos(1))
	assert.Equal(t, int64(1), n.Load())
}

func TestIdentityOf(t *testing.T) {
	assert.Contains(t, IdentityOf(counterFunc), "memo.counterFunc")
	assert.Empty(t, IdentityOf(nil))
	assert.Empty(t, IdentityOf(42))

	f := New("f", nil)
	assert.Empty(t, f.Identity())
}

func TestMemoizer_MaxConcurrent(t *testing.T) {
	var running, peak atomic.Int32
	f := New("bounded", func(_ context.Context, a Args) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return a.Arg(0), nil
	}, WithStore(cache.NewMemoryStore()), WithMaxConcurrent(2))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Call(context.Background(), Pos(i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestMemoizer_MaxConcurrentHonorsContext(t *testing.T) {
	release := make(chan struct{})
	f := New("blocked", func(context.Context, Args) (any, error) {
		<-release
		return nil, nil
	}, WithStore(cache.NewMemoryStore()), WithMaxConcurrent(1))
	defer close(release)

	go func() { _, _ = f.Call(context.Background(), Pos(1)) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Call(ctx, Pos(2))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
