package pagecache

import (
	"context"
	"strings"
)

// PathResolver maps a content identifier to the canonical host and path of
// its page, without scheme, e.g. "example.com/2024/05/hello/". An empty
// result means the identifier has no page.
type PathResolver interface {
	ResolvePath(ctx context.Context, id string) (string, error)
}

// PathResolverFunc adapts a function to PathResolver.
type PathResolverFunc func(ctx context.Context, id string) (string, error)

// ResolvePath implements PathResolver.
func (f PathResolverFunc) ResolvePath(ctx context.Context, id string) (string, error) {
	if f == nil {
		return "", ErrNoResolver
	}
	return f(ctx, id)
}

// PermalinkResolver wraps a lookup returning absolute permalinks and strips
// their scheme.
func PermalinkResolver(permalink func(ctx context.Context, id string) (string, error)) PathResolver {
	return PathResolverFunc(func(ctx context.Context, id string) (string, error) {
		link, err := permalink(ctx, id)
		if err != nil {
			return "", err
		}
		return stripScheme(link), nil
	})
}

func stripScheme(link string) string {
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(link, scheme) {
			return link[len(scheme):]
		}
	}
	return link
}
