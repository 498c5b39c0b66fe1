package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// CustomSelfAdapterSpec defines the workload managed by an adapter instance.
type CustomSelfAdapterSpec struct {
	// ScaleTargetRef references the Deployment being adapted.
	// +kubebuilder:validation:Required
	ScaleTargetRef CrossVersionObjectReference `json:"scaleTargetRef"`

	// ContainerName is the container whose image tag and CPU limit are adapted.
	// +optional
	ContainerName string `json:"containerName,omitempty"`
}

// CrossVersionObjectReference identifies the adapted resource.
type CrossVersionObjectReference struct {
	// API version of the referent.
	// +optional
	APIVersion string `json:"apiVersion,omitempty"`

	// Kind of the referent.
	// +kubebuilder:validation:Required
	Kind string `json:"kind"`

	// Name of the referent.
	// +kubebuilder:validation:Required
	Name string `json:"name"`
}

// CustomSelfAdapterStatus is maintained by the adapter operator.
type CustomSelfAdapterStatus struct {
	// InitialData projects the initial-data annotation of the adapter pod.
	// It holds the same JSON document as the annotation and lags behind it.
	// +optional
	InitialData string `json:"initialData,omitempty"`

	// LastAdaptationTime is the time of the last applied adaptation.
	// +optional
	LastAdaptationTime *metav1.Time `json:"lastAdaptationTime,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=csa
// +kubebuilder:printcolumn:name="Target",type=string,JSONPath=".spec.scaleTargetRef.name"
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=".metadata.creationTimestamp"

// CustomSelfAdapter is the Schema for the customselfadapters API.
type CustomSelfAdapter struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   CustomSelfAdapterSpec   `json:"spec,omitempty"`
	Status CustomSelfAdapterStatus `json:"status,omitempty"`
}

// CustomSelfAdapterList contains a list of CustomSelfAdapter resources.
// +kubebuilder:object:root=true
type CustomSelfAdapterList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`

	Items []CustomSelfAdapter `json:"items"`
}

func init() {
	SchemeBuilder.Register(&CustomSelfAdapter{}, &CustomSelfAdapterList{})
}
