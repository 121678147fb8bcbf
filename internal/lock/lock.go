// Package lock fornece locks exclusivos por chave com espera limitada.
package lock

import (
	"context"
	"errors"
	"sort"
)

// ErrTimeout indica que o lock não foi obtido dentro da espera máxima.
var ErrTimeout = errors.New("lock: wait timeout")

// Locker obtém um lock exclusivo para key. A função devolvida libera o
// lock e pode ser chamada mais de uma vez.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// AcquireAll obtém os locks de keys em ordem crescente, sem repetição.
// Se algum falhar, os já obtidos são liberados antes de retornar.
func AcquireAll(ctx context.Context, l Locker, keys []string) (func(), error) {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	sort.Strings(uniq)

	releases := make([]func(), 0, len(uniq))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, k := range uniq {
		rel, err := l.Acquire(ctx, k)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, rel)
	}
	return releaseAll, nil
}
