package actuator

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/custom-self-adapter/quality-adapter/internal/workload"
)

const testNamespace = "default"

func newScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	return scheme
}

func makeSettledDeployment(replicas int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "znn", Namespace: testNamespace, Generation: 1},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(replicas),
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": "znn"}},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{"app": "znn"}},
				Spec: corev1.PodSpec{Containers: []corev1.Container{
					{Name: "znn", Image: "csa/znn:400k"},
				}},
			},
		},
		Status: appsv1.DeploymentStatus{
			ObservedGeneration: 1,
			Replicas:           replicas,
			UpdatedReplicas:    replicas,
			AvailableReplicas:  replicas,
		},
	}
}

func makePod() *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "znn-abc", Namespace: testNamespace, Labels: map[string]string{"app": "znn"}},
		Spec: corev1.PodSpec{Containers: []corev1.Container{{
			Name:  "znn",
			Image: "csa/znn:400k",
			Resources: corev1.ResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("250m")},
				Limits:   corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("500m")},
			},
		}}},
	}
}

var _ = Describe("Actuator", func() {
	var (
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	getDeployment := func(c client.Client) *appsv1.Deployment {
		deploy := &appsv1.Deployment{}
		Expect(c.Get(ctx, client.ObjectKey{Namespace: testNamespace, Name: "znn"}, deploy)).To(Succeed())
		return deploy
	}

	Context("ApplyDeploymentPatch", func() {
		It("patches the replica count", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(makeSettledDeployment(3)).Build()
			act := NewActuator(c, nil)

			original := getDeployment(c)
			mutated := original.DeepCopy()
			mutated.Spec.Replicas = ptr.To(int32(5))

			outcome := act.ApplyDeploymentPatch(ctx, original, mutated)
			Expect(outcome.Err).NotTo(HaveOccurred())
			Expect(outcome.Applied).To(BeTrue())
			Expect(outcome.Result).To(Equal(ResultApplied))
			Expect(outcome.Replicas).To(Equal(int32(5)))
			Expect(*getDeployment(c).Spec.Replicas).To(Equal(int32(5)))
		})

		It("patches the image", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(makeSettledDeployment(3)).Build()
			act := NewActuator(c, nil)

			original := getDeployment(c)
			mutated := original.DeepCopy()
			mutated.Spec.Template.Spec.Containers[0].Image = "csa/znn:600k"

			outcome := act.ApplyDeploymentPatch(ctx, original, mutated)
			Expect(outcome.Applied).To(BeTrue())
			Expect(getDeployment(c).Spec.Template.Spec.Containers[0].Image).To(Equal("csa/znn:600k"))
		})

		It("skips without patching while a rollout is in progress", func() {
			deploy := makeSettledDeployment(3)
			deploy.Status.UpdatedReplicas = 1
			patched := false
			c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(deploy).
				WithInterceptorFuncs(interceptor.Funcs{
					Patch: func(ctx context.Context, c client.WithWatch, obj client.Object, patch client.Patch, opts ...client.PatchOption) error {
						patched = true
						return c.Patch(ctx, obj, patch, opts...)
					},
				}).Build()
			act := NewActuator(c, nil)

			original := getDeployment(c)
			mutated := original.DeepCopy()
			mutated.Spec.Replicas = ptr.To(int32(5))

			outcome := act.ApplyDeploymentPatch(ctx, original, mutated)
			Expect(outcome.Applied).To(BeFalse())
			Expect(outcome.Result).To(Equal(ResultSkipped))
			Expect(outcome.ErrorKind).To(Equal(ErrorKindRolloutInProgress))
			Expect(outcome.Err).To(MatchError(workload.ErrRolloutInProgress))
			Expect(patched).To(BeFalse())
			Expect(*getDeployment(c).Spec.Replicas).To(Equal(int32(3)))
		})

		It("fails on a concurrent modification instead of overwriting it", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(makeSettledDeployment(3)).Build()
			act := NewActuator(c, nil)

			original := getDeployment(c)

			concurrent := original.DeepCopy()
			concurrent.Spec.Replicas = ptr.To(int32(4))
			Expect(c.Update(ctx, concurrent)).To(Succeed())

			mutated := original.DeepCopy()
			mutated.Spec.Replicas = ptr.To(int32(5))
			outcome := act.ApplyDeploymentPatch(ctx, original, mutated)

			Expect(outcome.Applied).To(BeFalse())
			Expect(outcome.Result).To(Equal(ResultError))
			Expect(outcome.ErrorKind).To(Equal(ErrorKindPatchFailed))
			Expect(errors.Is(outcome.Err, ErrPatchFailed)).To(BeTrue())
			Expect(apierrors.IsConflict(outcome.Err)).To(BeTrue())
			Expect(*getDeployment(c).Spec.Replicas).To(Equal(int32(4)))
		})

		It("reports API errors as patch failures", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(makeSettledDeployment(3)).
				WithInterceptorFuncs(interceptor.Funcs{
					Patch: func(ctx context.Context, c client.WithWatch, obj client.Object, patch client.Patch, opts ...client.PatchOption) error {
						return errors.New("connection refused")
					},
				}).Build()
			act := NewActuator(c, nil)

			original := getDeployment(c)
			outcome := act.ApplyDeploymentPatch(ctx, original, original.DeepCopy())
			Expect(outcome.ErrorKind).To(Equal(ErrorKindPatchFailed))
			Expect(outcome.Err).To(MatchError(ContainSubstring("connection refused")))
		})
	})

	Context("ApplyPodResize", func() {
		newResources := corev1.ResourceRequirements{
			Requests: corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("300m")},
			Limits:   corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("600m")},
		}

		It("patches the resize subresource of the pod", func() {
			var (
				subresource string
				patchBody   []byte
			)
			c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(makePod()).
				WithInterceptorFuncs(interceptor.Funcs{
					SubResourcePatch: func(ctx context.Context, c client.Client, subResourceName string, obj client.Object, patch client.Patch, opts ...client.SubResourcePatchOption) error {
						subresource = subResourceName
						data, err := patch.Data(obj)
						Expect(err).NotTo(HaveOccurred())
						patchBody = data
						return nil
					},
				}).Build()
			act := NewActuator(c, nil)

			outcome := act.ApplyPodResize(ctx, makeSettledDeployment(1), makePod(), "znn", newResources)
			Expect(outcome.Err).NotTo(HaveOccurred())
			Expect(outcome.Applied).To(BeTrue())
			Expect(outcome.Pod).To(Equal("znn-abc"))
			Expect(outcome.CPULimit).To(Equal("600m"))
			Expect(subresource).To(Equal(ResizeSubresource))
			Expect(string(patchBody)).To(ContainSubstring(`"600m"`))
			Expect(string(patchBody)).To(ContainSubstring(`"name":"znn"`))
		})

		It("skips while the owner is rolling out", func() {
			owner := makeSettledDeployment(2)
			owner.Generation = 2
			c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(makePod()).Build()

			outcome := NewActuator(c, nil).ApplyPodResize(ctx, owner, makePod(), "znn", newResources)
			Expect(outcome.Result).To(Equal(ResultSkipped))
			Expect(outcome.ErrorKind).To(Equal(ErrorKindRolloutInProgress))
		})

		It("fails for an unknown container", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(makePod()).Build()

			outcome := NewActuator(c, nil).ApplyPodResize(ctx, makeSettledDeployment(1), makePod(), "other", newResources)
			Expect(outcome.Result).To(Equal(ResultError))
			Expect(outcome.Err).To(HaveOccurred())
		})

		It("reports resize errors as patch failures", func() {
			c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(makePod()).
				WithInterceptorFuncs(interceptor.Funcs{
					SubResourcePatch: func(ctx context.Context, c client.Client, subResourceName string, obj client.Object, patch client.Patch, opts ...client.SubResourcePatchOption) error {
						return errors.New("resize not supported")
					},
				}).Build()

			outcome := NewActuator(c, nil).ApplyPodResize(ctx, makeSettledDeployment(1), makePod(), "znn", newResources)
			Expect(errors.Is(outcome.Err, ErrPatchFailed)).To(BeTrue())
			Expect(outcome.ErrorKind).To(Equal(ErrorKindPatchFailed))
		})
	})
})
