package workload

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

const testNamespace = "test-ns"

var znnLabels = map[string]string{"app": "znn"}

func newScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	return scheme
}

func makeZnnDeployment() *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "znn", Namespace: testNamespace},
		Spec: appsv1.DeploymentSpec{
			Selector: &metav1.LabelSelector{MatchLabels: znnLabels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: znnLabels},
				Spec: corev1.PodSpec{Containers: []corev1.Container{
					{Name: "sidecar", Image: "envoy:1.30"},
					{Name: "znn", Image: "csa/znn:400k"},
				}},
			},
		},
	}
}

func makePod(name string, labels map[string]string, phase corev1.PodPhase, ready bool) *corev1.Pod {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace, Labels: labels},
		Status: corev1.PodStatus{
			Phase:      phase,
			Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: status}},
		},
	}
}

var _ = Describe("ContainerByName", func() {
	It("returns a pointer into the pod template", func() {
		deploy := makeZnnDeployment()
		container, err := ContainerByName(deploy, "znn")
		Expect(err).NotTo(HaveOccurred())

		container.Image = "csa/znn:600k"
		Expect(deploy.Spec.Template.Spec.Containers[1].Image).To(Equal("csa/znn:600k"))
	})

	It("fails for an unknown container", func() {
		_, err := ContainerByName(makeZnnDeployment(), "missing")
		Expect(errors.Is(err, ErrContainerNotFound)).To(BeTrue())
	})
})

var _ = Describe("PodForDeployment", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	build := func(objs ...client.Object) client.Client {
		return fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(objs...).Build()
	}

	It("prefers ready pods", func() {
		c := build(
			makePod("znn-a", znnLabels, corev1.PodRunning, false),
			makePod("znn-b", znnLabels, corev1.PodRunning, true),
		)
		pod, err := PodForDeployment(ctx, c, makeZnnDeployment())
		Expect(err).NotTo(HaveOccurred())
		Expect(pod.Name).To(Equal("znn-b"))
	})

	It("falls back to running pods and breaks ties by name", func() {
		c := build(
			makePod("znn-z", znnLabels, corev1.PodRunning, false),
			makePod("znn-c", znnLabels, corev1.PodRunning, false),
		)
		pod, err := PodForDeployment(ctx, c, makeZnnDeployment())
		Expect(err).NotTo(HaveOccurred())
		Expect(pod.Name).To(Equal("znn-c"))
	})

	It("ignores pods of other workloads and pods that are not running", func() {
		c := build(
			makePod("other", map[string]string{"app": "other"}, corev1.PodRunning, true),
			makePod("znn-pending", znnLabels, corev1.PodPending, false),
			makePod("znn-done", znnLabels, corev1.PodSucceeded, false),
		)
		_, err := PodForDeployment(ctx, c, makeZnnDeployment())
		Expect(errors.Is(err, ErrNoPodFound)).To(BeTrue())
	})

	It("fails without a selector", func() {
		deploy := makeZnnDeployment()
		deploy.Spec.Selector = nil
		_, err := PodForDeployment(ctx, build(), deploy)
		Expect(errors.Is(err, ErrNoPodFound)).To(BeTrue())
	})

	It("surfaces list errors", func() {
		c := fake.NewClientBuilder().WithScheme(newScheme()).WithInterceptorFuncs(interceptor.Funcs{
			List: func(ctx context.Context, c client.WithWatch, list client.ObjectList, opts ...client.ListOption) error {
				return errors.New("boom")
			},
		}).Build()
		_, err := PodForDeployment(ctx, c, makeZnnDeployment())
		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(errors.Is(err, ErrNoPodFound)).To(BeFalse())
	})
})

var _ = Describe("Get", func() {
	It("reads the deployment", func() {
		c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(makeZnnDeployment()).Build()
		deploy, err := Get(context.Background(), c, types.NamespacedName{Namespace: testNamespace, Name: "znn"})
		Expect(err).NotTo(HaveOccurred())
		Expect(deploy.Spec.Template.Spec.Containers).To(HaveLen(2))
	})

	It("wraps not found errors", func() {
		c := fake.NewClientBuilder().WithScheme(newScheme()).Build()
		_, err := Get(context.Background(), c, types.NamespacedName{Namespace: testNamespace, Name: "znn"})
		Expect(err).To(MatchError(ContainSubstring("failed to get deployment")))
	})
})
