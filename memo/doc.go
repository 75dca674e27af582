// Package memo memoizes functions against a cache.Store.
//
// A Memoizer derives a cache key from the function's name, a fingerprint of
// its identity, and the fingerprints of its arguments. The first call for a
// key runs the function and stores the wrapped result; later calls with
// fingerprint-equal arguments read the result back without running it.
//
//	fib := memo.New("fib", func(ctx context.Context, a memo.Args) (any, error) {
//		return compute(a.Arg(0).(int)), nil
//	})
//	v, err := fib.Call(ctx, memo.Pos(30))
//
// Arguments wrapped with value.Ignore are passed through to the function but
// never influence the key. Function errors are returned unchanged and leave
// no cache entry behind.
package memo
