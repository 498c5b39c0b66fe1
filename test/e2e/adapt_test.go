//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	csav1 "github.com/custom-self-adapter/quality-adapter/api/v1"
	"github.com/custom-self-adapter/quality-adapter/internal/actuator"
	"github.com/custom-self-adapter/quality-adapter/internal/app"
	"github.com/custom-self-adapter/quality-adapter/internal/baseline"
	"github.com/custom-self-adapter/quality-adapter/internal/config"
	"github.com/custom-self-adapter/quality-adapter/internal/workload"
)

// The pause image is published under consecutive tags, which serve as two
// quality tiers.
const (
	lowTier  = "3.9"
	highTier = "3.10"
	image    = "registry.k8s.io/pause"
)

var _ = Describe("Adapter hooks", Ordered, func() {
	var (
		ctx       context.Context
		key       types.NamespacedName
		companion types.NamespacedName
		cfg       *config.AdapterConfig
	)

	BeforeAll(func() {
		ctx = context.Background()
		key = types.NamespacedName{Namespace: testNamespace, Name: "znn"}
		companion = types.NamespacedName{Namespace: testNamespace, Name: "znn-adapter"}
		cfg = config.Default()
		cfg.Tiers = []string{lowTier, highTier}
		cfg.MaxReplicas = 3

		By("creating the adapter pod holding baselines")
		Expect(k8sClient.Create(ctx, &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: companion.Name, Namespace: companion.Namespace},
			Spec: corev1.PodSpec{Containers: []corev1.Container{{
				Name:  "adapter",
				Image: image + ":" + highTier,
			}}},
		})).To(Succeed())

		By("creating the workload")
		labels := map[string]string{"app": "znn"}
		Expect(k8sClient.Create(ctx, &appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{Name: key.Name, Namespace: key.Namespace},
			Spec: appsv1.DeploymentSpec{
				Replicas: ptr.To(int32(1)),
				Selector: &metav1.LabelSelector{MatchLabels: labels},
				Template: corev1.PodTemplateSpec{
					ObjectMeta: metav1.ObjectMeta{Labels: labels},
					Spec: corev1.PodSpec{Containers: []corev1.Container{{
						Name:  cfg.ContainerName,
						Image: image + ":" + lowTier,
					}}},
				},
			},
		})).To(Succeed())
		waitSettled(ctx, key)
	})

	run := func(hook func(*app.Runner) error, req *csav1.HookRequest) map[string]any {
		data, err := json.Marshal(req)
		Expect(err).NotTo(HaveOccurred())
		out := &bytes.Buffer{}
		runner := &app.Runner{
			Client:  k8sClient,
			Config:  cfg,
			Store:   baseline.NewAnnotationStore(k8sClient, companion),
			Emitter: actuator.NewMetricsEmitter(),
			Stdin:   bytes.NewBuffer(data),
			Stdout:  out,
		}
		Expect(hook(runner)).To(Succeed())
		doc := map[string]any{}
		Expect(json.Unmarshal(out.Bytes(), &doc)).To(Succeed())
		return doc
	}

	current := func() *appsv1.Deployment {
		deploy, err := workload.Get(ctx, k8sClient, key)
		Expect(err).NotTo(HaveOccurred())
		return deploy
	}

	It("scales out on overload", func() {
		doc := run(func(r *app.Runner) error { return r.Evaluate(ctx) }, &csav1.HookRequest{
			Metrics:  []csav1.MetricSample{{Value: `{"current_value":"900m","target_value":"300m"}`}},
			Resource: current(),
		})
		Expect(doc).To(HaveKeyWithValue("strategy", csav1.StrategyAdaptReplicas))

		eval := csav1.ReplicasEvaluation(3)
		doc = run(func(r *app.Runner) error { return r.Adapt(ctx, "") }, &csav1.HookRequest{Resource: current(), Evaluation: &eval})
		Expect(doc).To(HaveKeyWithValue("replicas", BeNumerically("==", 3)))
		waitSettled(ctx, key)
	})

	It("records the baseline and never steps above it", func() {
		eval := csav1.TagEvaluation(true)
		doc := run(func(r *app.Runner) error { return r.Adapt(ctx, "") }, &csav1.HookRequest{Resource: current(), Evaluation: &eval})
		Expect(doc).To(HaveKeyWithValue("result", csav1.ResultSkip))

		b, found, err := baseline.NewAnnotationStore(k8sClient, companion).Get(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(b.Tag).To(Equal(lowTier))
		Expect(current().Spec.Template.Spec.Containers[0].Image).To(Equal(image + ":" + lowTier))
	})

	It("skips while a rollout is in progress", func() {
		By("starting a rollout that cannot progress")
		deploy := current()
		stalled := deploy.DeepCopy()
		stalled.Spec.Paused = true
		stalled.Spec.Template.Annotations = map[string]string{"csa.custom-self-adapter.net/restartedAt": time.Now().Format(time.RFC3339)}
		Expect(k8sClient.Patch(ctx, stalled, client.MergeFrom(deploy))).To(Succeed())
		Eventually(func(g Gomega) {
			d := current()
			g.Expect(d.Status.ObservedGeneration).To(Equal(d.Generation))
		}, time.Minute, time.Second).Should(Succeed())
		Expect(workload.RolloutInProgress(current())).To(BeTrue())

		eval := csav1.ReplicasEvaluation(1)
		doc := run(func(r *app.Runner) error { return r.Adapt(ctx, "") }, &csav1.HookRequest{Resource: current(), Evaluation: &eval})
		Expect(doc).To(HaveKeyWithValue("result", csav1.ResultSkip))
		Expect(*current().Spec.Replicas).To(Equal(int32(3)))
	})
})

func waitSettled(ctx context.Context, key types.NamespacedName) {
	By("waiting for the workload to settle")
	Eventually(func(g Gomega) {
		deploy, err := workload.Get(ctx, k8sClient, key)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(workload.RolloutInProgress(deploy)).To(BeFalse())
	}, 3*time.Minute, 2*time.Second).Should(Succeed())
}
