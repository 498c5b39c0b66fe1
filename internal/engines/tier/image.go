package tier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidImage is returned for image references that cannot be decomposed.
var ErrInvalidImage = errors.New("invalid image reference")

var (
	registryPattern = regexp.MustCompile(`^[\w.\-]+(?::\d+)?$`)
	segmentPattern  = regexp.MustCompile(`^[a-z0-9.\-_]+$`)
	tagPattern      = regexp.MustCompile(`^[\w.\-]{1,127}$`)
)

// ImageReference is a container image split into its parts. Repository is
// only set when the reference has three path segments, the first one being
// the registry host.
type ImageReference struct {
	Repository string
	Name       string
	Tag        string
}

// DecomposeImage splits image into registry, name and tag. Names have one or
// two path segments; digests are not supported.
func DecomposeImage(image string) (ImageReference, error) {
	if image == "" {
		return ImageReference{}, fmt.Errorf("%w: empty", ErrInvalidImage)
	}

	ref := ImageReference{}
	path := image
	if i := strings.LastIndex(image, ":"); i > strings.LastIndex(image, "/") {
		path, ref.Tag = image[:i], image[i+1:]
		if !tagPattern.MatchString(ref.Tag) {
			return ImageReference{}, fmt.Errorf("%w: bad tag in %q", ErrInvalidImage, image)
		}
	}

	segments := strings.Split(path, "/")
	switch len(segments) {
	case 1, 2:
	case 3:
		ref.Repository = segments[0]
		if !registryPattern.MatchString(ref.Repository) {
			return ImageReference{}, fmt.Errorf("%w: bad registry in %q", ErrInvalidImage, image)
		}
		segments = segments[1:]
	default:
		return ImageReference{}, fmt.Errorf("%w: too many path segments in %q", ErrInvalidImage, image)
	}
	for _, s := range segments {
		if !segmentPattern.MatchString(s) {
			return ImageReference{}, fmt.Errorf("%w: bad name in %q", ErrInvalidImage, image)
		}
	}
	ref.Name = strings.Join(segments, "/")
	return ref, nil
}

// WithTag returns a copy of r carrying tag.
func (r ImageReference) WithTag(tag string) ImageReference {
	r.Tag = tag
	return r
}

func (r ImageReference) String() string {
	var b strings.Builder
	if r.Repository != "" {
		b.WriteString(r.Repository)
		b.WriteByte('/')
	}
	b.WriteString(r.Name)
	if r.Tag != "" {
		b.WriteByte(':')
		b.WriteString(r.Tag)
	}
	return b.String()
}
