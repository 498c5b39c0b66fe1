package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
	"github.com/custom-self-adapter/quality-adapter/internal/logging"
)

// AnnotationKey is the annotation of the adapter Pod holding the records.
const AnnotationKey = "csa.custom-self-adapter.net/initialData"

// Environment variables naming the adapter Pod and CustomSelfAdapter.
const (
	EnvName      = "CSA_NAME"
	EnvNamespace = "CSA_NAMESPACE"
)

// ErrStoreUnavailable is returned when records cannot be read or written.
// Callers treat it as "no baseline known" for the current cycle.
var ErrStoreUnavailable = errors.New("initial state store unavailable")

// Baseline is the initial state of one workload. Empty fields are unknown.
type Baseline struct {
	Tag      string `json:"tag,omitempty"`
	CPULimit string `json:"cpu_limit,omitempty"`
}

// IsZero reports whether nothing is known.
func (b Baseline) IsZero() bool {
	return b.Tag == "" && b.CPULimit == ""
}

// merge fills the fields of b that are still unknown from other. It reports
// whether anything changed.
func (b *Baseline) merge(other Baseline) bool {
	changed := false
	if b.Tag == "" && other.Tag != "" {
		b.Tag = other.Tag
		changed = true
	}
	if b.CPULimit == "" && other.CPULimit != "" {
		b.CPULimit = other.CPULimit
		changed = true
	}
	return changed
}

// Store reads and records baselines keyed by workload.
type Store interface {
	// Get returns the baseline of workload and whether any field is known.
	Get(ctx context.Context, workload types.NamespacedName) (Baseline, bool, error)
	// StoreIfAbsent records the fields of b that are not recorded yet. Fields
	// already recorded are never overwritten.
	StoreIfAbsent(ctx context.Context, workload types.NamespacedName, b Baseline) error
}

// records is the annotation payload.
type records map[string]Baseline

// AnnotationStore keeps records in an annotation of the adapter Pod.
type AnnotationStore struct {
	client           client.Client
	companion        types.NamespacedName
	statusProjection bool
}

// Option configures an AnnotationStore.
type Option func(*AnnotationStore)

// WithStatusProjection makes Get consult the CustomSelfAdapter status before
// the annotation.
func WithStatusProjection(enabled bool) Option {
	return func(s *AnnotationStore) {
		s.statusProjection = enabled
	}
}

// NewAnnotationStore creates a store on the Pod (and CustomSelfAdapter) named
// companion.
func NewAnnotationStore(c client.Client, companion types.NamespacedName, opts ...Option) *AnnotationStore {
	s := &AnnotationStore{client: c, companion: companion}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CompanionFromEnv reads the adapter identity from CSA_NAME and CSA_NAMESPACE.
func CompanionFromEnv() (types.NamespacedName, error) {
	name, namespace := os.Getenv(EnvName), os.Getenv(EnvNamespace)
	if name == "" || namespace == "" {
		return types.NamespacedName{}, fmt.Errorf("%w: %s or %s not defined", ErrStoreUnavailable, EnvName, EnvNamespace)
	}
	return types.NamespacedName{Namespace: namespace, Name: name}, nil
}

func (s *AnnotationStore) Get(ctx context.Context, workload types.NamespacedName) (Baseline, bool, error) {
	logger := ctrl.LoggerFrom(ctx)

	if s.statusProjection {
		recs, found, err := s.readStatus(ctx)
		if err != nil {
			return Baseline{}, false, err
		}
		if found {
			if b, ok := recs[workload.String()]; ok && !b.IsZero() {
				return b, true, nil
			}
		}
		logger.V(logging.DEBUG).Info("Baseline not projected yet, reading annotation", "workload", workload)
	}

	recs, _, err := s.readAnnotation(ctx)
	if err != nil {
		return Baseline{}, false, err
	}
	b, ok := recs[workload.String()]
	return b, ok && !b.IsZero(), nil
}

func (s *AnnotationStore) StoreIfAbsent(ctx context.Context, workload types.NamespacedName, b Baseline) error {
	recs, pod, err := s.readAnnotation(ctx)
	if err != nil {
		return err
	}

	current := recs[workload.String()]
	if !current.merge(b) {
		return nil
	}
	recs[workload.String()] = current

	value, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	patch := client.MergeFrom(pod.DeepCopy())
	if pod.Annotations == nil {
		pod.Annotations = map[string]string{}
	}
	pod.Annotations[AnnotationKey] = string(value)
	if err := s.client.Patch(ctx, pod, patch); err != nil {
		return fmt.Errorf("%w: failed to patch pod %s: %v", ErrStoreUnavailable, s.companion, err)
	}

	ctrl.LoggerFrom(ctx).Info("Recorded baseline",
		"workload", workload, "tag", current.Tag, "cpuLimit", current.CPULimit)
	return nil
}

func (s *AnnotationStore) readAnnotation(ctx context.Context) (records, *corev1.Pod, error) {
	pod := &corev1.Pod{}
	if err := s.client.Get(ctx, s.companion, pod); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to get pod %s: %v", ErrStoreUnavailable, s.companion, err)
	}
	recs, err := decodeRecords(pod.Annotations[AnnotationKey])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: annotation of pod %s: %v", ErrStoreUnavailable, s.companion, err)
	}
	return recs, pod, nil
}

// readStatus reports found=false when the CustomSelfAdapter or its projection
// does not exist.
func (s *AnnotationStore) readStatus(ctx context.Context) (records, bool, error) {
	csa := &csav1.CustomSelfAdapter{}
	err := s.client.Get(ctx, s.companion, csa)
	switch {
	case err == nil:
	case apierrors.IsNotFound(err), meta.IsNoMatchError(err), runtime.IsNotRegisteredError(err):
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("%w: failed to get CustomSelfAdapter %s: %v", ErrStoreUnavailable, s.companion, err)
	}
	if csa.Status.InitialData == "" {
		return nil, false, nil
	}
	recs, err := decodeRecords(csa.Status.InitialData)
	if err != nil {
		return nil, false, fmt.Errorf("%w: status of CustomSelfAdapter %s: %v", ErrStoreUnavailable, s.companion, err)
	}
	return recs, true, nil
}

func decodeRecords(value string) (records, error) {
	recs := records{}
	if value == "" {
		return recs, nil
	}
	if err := json.Unmarshal([]byte(value), &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
