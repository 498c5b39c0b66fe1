package baseline

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
)

const testNamespace = "csa-system"

var (
	companion = types.NamespacedName{Namespace: testNamespace, Name: "znn-adapter"}
	znn       = types.NamespacedName{Namespace: "default", Name: "znn"}
)

func newScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	_ = csav1.AddToScheme(scheme)
	return scheme
}

func makeCompanionPod(annotation string) *corev1.Pod {
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: companion.Name, Namespace: companion.Namespace}}
	if annotation != "" {
		pod.Annotations = map[string]string{AnnotationKey: annotation}
	}
	return pod
}

func readAnnotation(c client.Client) map[string]Baseline {
	pod := &corev1.Pod{}
	Expect(c.Get(context.Background(), companion, pod)).To(Succeed())
	out := map[string]Baseline{}
	Expect(json.Unmarshal([]byte(pod.Annotations[AnnotationKey]), &out)).To(Succeed())
	return out
}

var _ = Describe("AnnotationStore", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("with the annotation only", func() {
		It("returns nothing before any write", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(makeCompanionPod("")).Build()
			store := NewAnnotationStore(c, companion)

			_, found, err := store.Get(ctx, znn)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})

		It("records each field once", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(makeCompanionPod("")).Build()
			store := NewAnnotationStore(c, companion)

			Expect(store.StoreIfAbsent(ctx, znn, Baseline{Tag: "800k"})).To(Succeed())
			Expect(store.StoreIfAbsent(ctx, znn, Baseline{Tag: "400k", CPULimit: "500m"})).To(Succeed())
			Expect(store.StoreIfAbsent(ctx, znn, Baseline{Tag: "20k", CPULimit: "100m"})).To(Succeed())

			b, found, err := store.Get(ctx, znn)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(b).To(Equal(Baseline{Tag: "800k", CPULimit: "500m"}))
		})

		It("keeps records of other workloads", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).
				WithObjects(makeCompanionPod(`{"default/other":{"tag":"200k"}}`)).Build()
			store := NewAnnotationStore(c, companion)

			Expect(store.StoreIfAbsent(ctx, znn, Baseline{Tag: "600k"})).To(Succeed())

			recs := readAnnotation(c)
			Expect(recs).To(HaveKeyWithValue("default/other", Baseline{Tag: "200k"}))
			Expect(recs).To(HaveKeyWithValue("default/znn", Baseline{Tag: "600k"}))
		})

		It("does not patch when nothing changes", func() {
			patches := 0
			c := fake.NewClientBuilder().WithScheme(newScheme()).
				WithObjects(makeCompanionPod(`{"default/znn":{"tag":"800k"}}`)).
				WithInterceptorFuncs(interceptor.Funcs{
					Patch: func(ctx context.Context, c client.WithWatch, obj client.Object, patch client.Patch, opts ...client.PatchOption) error {
						patches++
						return c.Patch(ctx, obj, patch, opts...)
					},
				}).Build()
			store := NewAnnotationStore(c, companion)

			Expect(store.StoreIfAbsent(ctx, znn, Baseline{Tag: "400k"})).To(Succeed())
			Expect(patches).To(BeZero())
		})

		It("reports a missing companion pod as unavailable", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).Build()
			store := NewAnnotationStore(c, companion)

			_, _, err := store.Get(ctx, znn)
			Expect(errors.Is(err, ErrStoreUnavailable)).To(BeTrue())
			Expect(errors.Is(store.StoreIfAbsent(ctx, znn, Baseline{Tag: "800k"}), ErrStoreUnavailable)).To(BeTrue())
		})

		It("reports a corrupt annotation as unavailable", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(makeCompanionPod("{not json")).Build()
			store := NewAnnotationStore(c, companion)

			_, _, err := store.Get(ctx, znn)
			Expect(errors.Is(err, ErrStoreUnavailable)).To(BeTrue())
		})

		It("reports patch failures as unavailable", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).
				WithObjects(makeCompanionPod("")).
				WithInterceptorFuncs(interceptor.Funcs{
					Patch: func(ctx context.Context, c client.WithWatch, obj client.Object, patch client.Patch, opts ...client.PatchOption) error {
						return apierrors.NewForbidden(schema.GroupResource{Resource: "pods"}, companion.Name, errors.New("denied"))
					},
				}).Build()
			store := NewAnnotationStore(c, companion)

			err := store.StoreIfAbsent(ctx, znn, Baseline{Tag: "800k"})
			Expect(errors.Is(err, ErrStoreUnavailable)).To(BeTrue())
		})
	})

	Context("with the status projection", func() {
		makeCSA := func(initialData string) *csav1.CustomSelfAdapter {
			return &csav1.CustomSelfAdapter{
				ObjectMeta: metav1.ObjectMeta{Name: companion.Name, Namespace: companion.Namespace},
				Status:     csav1.CustomSelfAdapterStatus{InitialData: initialData},
			}
		}

		It("prefers the projected record", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).
				WithObjects(
					makeCompanionPod(`{"default/znn":{"tag":"400k"}}`),
					makeCSA(`{"default/znn":{"tag":"800k","cpu_limit":"1"}}`),
				).Build()
			store := NewAnnotationStore(c, companion, WithStatusProjection(true))

			b, found, err := store.Get(ctx, znn)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(b).To(Equal(Baseline{Tag: "800k", CPULimit: "1"}))
		})

		It("falls back to the annotation while the projection lags", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).
				WithObjects(makeCompanionPod(`{"default/znn":{"tag":"600k"}}`), makeCSA("")).Build()
			store := NewAnnotationStore(c, companion, WithStatusProjection(true))

			b, found, err := store.Get(ctx, znn)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(b.Tag).To(Equal("600k"))
		})

		It("falls back to the annotation when the object does not exist", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).
				WithObjects(makeCompanionPod(`{"default/znn":{"tag":"600k"}}`)).Build()
			store := NewAnnotationStore(c, companion, WithStatusProjection(true))

			b, found, err := store.Get(ctx, znn)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(b.Tag).To(Equal("600k"))
		})

		It("reports other read errors as unavailable", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).
				WithObjects(makeCompanionPod("")).
				WithInterceptorFuncs(interceptor.Funcs{
					Get: func(ctx context.Context, c client.WithWatch, key client.ObjectKey, obj client.Object, opts ...client.GetOption) error {
						if _, ok := obj.(*csav1.CustomSelfAdapter); ok {
							return apierrors.NewServiceUnavailable("etcd down")
						}
						return c.Get(ctx, key, obj, opts...)
					},
				}).Build()
			store := NewAnnotationStore(c, companion, WithStatusProjection(true))

			_, _, err := store.Get(ctx, znn)
			Expect(errors.Is(err, ErrStoreUnavailable)).To(BeTrue())
		})
	})
})

var _ = Describe("CompanionFromEnv", func() {
	It("requires both variables", func() {
		GinkgoT().Setenv(EnvName, "znn-adapter")
		GinkgoT().Setenv(EnvNamespace, "")
		_, err := CompanionFromEnv()
		Expect(errors.Is(err, ErrStoreUnavailable)).To(BeTrue())

		GinkgoT().Setenv(EnvNamespace, testNamespace)
		key, err := CompanionFromEnv()
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal(companion))
	})
})
