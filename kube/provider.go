package kube

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/Lord-Y/couchdiscover"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// NewClient returns a kubernetes client built from kubeconfig
// or from the service account when kubeconfig is empty
func NewClient(kubeconfig string) (kubernetes.Interface, error) {
	var (
		config *rest.Config
		err    error
	)
	if kubeconfig == "" {
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, errors.Wrap(err, "Fail to load kubernetes configuration")
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "Fail to create kubernetes client")
	}
	return client, nil
}

// NewProvider returns a Provider for the statefulset of options.Address
func NewProvider(options Options) *Provider {
	if options.Logger == nil {
		nop := zerolog.Nop()
		options.Logger = &nop
	}
	logger := options.Logger.With().
		Str("namespace", options.Address.Namespace).
		Str("statefulset", options.Address.SetName).
		Logger()

	return &Provider{
		Logger:  &logger,
		address: options.Address,
		client:  options.Client,
	}
}

// endpointsSubset returns the first subset of the endpoints
// named after the service
func (p *Provider) endpointsSubset(ctx context.Context) (*corev1.EndpointSubset, error) {
	endpoints, err := p.client.CoreV1().Endpoints(p.address.Namespace).Get(ctx, p.address.Service, metav1.GetOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "Fail to get endpoints %s/%s", p.address.Namespace, p.address.Service)
	}
	if len(endpoints.Subsets) == 0 {
		return nil, nil
	}
	return &endpoints.Subsets[0], nil
}

// Hosts returns the sorted addresses of all ready siblings
func (p *Provider) Hosts(ctx context.Context) ([]couchdiscover.NodeAddress, error) {
	subset, err := p.endpointsSubset(ctx)
	if err != nil || subset == nil {
		return nil, err
	}

	var hosts []couchdiscover.NodeAddress
	for _, address := range subset.Addresses {
		if address.Hostname == "" {
			p.Logger.Debug().Str("ip", address.IP).Msg("Skipping endpoint address without hostname")
			continue
		}
		host, err := p.address.WithNode(address.Hostname)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, host)
	}
	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].String() < hosts[j].String()
	})
	return hosts, nil
}

// Ports returns the ports of the service endpoints. The lowest one
// is the data port and the next one the admin port
func (p *Provider) Ports(ctx context.Context) (couchdiscover.Ports, error) {
	ports := couchdiscover.Ports{Data: couchdiscover.DefaultDataPort, Admin: couchdiscover.DefaultAdminPort}
	subset, err := p.endpointsSubset(ctx)
	if err != nil {
		return couchdiscover.Ports{}, err
	}
	if subset == nil {
		return ports, nil
	}

	var values []int
	for _, port := range subset.Ports {
		values = append(values, int(port.Port))
	}
	sort.Ints(values)
	if len(values) > 0 {
		ports.Data = values[0]
	}
	if len(values) > 1 {
		ports.Admin = values[1]
	}
	return ports, nil
}

// Credentials returns admin credentials from the statefulset container env
func (p *Provider) Credentials(ctx context.Context) (*couchdiscover.Credentials, error) {
	env, err := p.environment(ctx)
	if err != nil {
		return nil, err
	}
	return couchdiscover.WithDefaultCredentials(&couchdiscover.Credentials{
		Username: env[envAdminUser],
		Password: env[envAdminPass],
	}), nil
}

// ClusterSize returns COUCHDB_CLUSTER_SIZE from the statefulset container env
// or the statefulset replicas
func (p *Provider) ClusterSize(ctx context.Context) (int, error) {
	env, err := p.environment(ctx)
	if err != nil {
		return 0, err
	}
	if value := env[envClusterSize]; value != "" {
		size, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", couchdiscover.ErrInvalidClusterSize, envClusterSize, value)
		}
		return size, nil
	}

	set, err := p.client.AppsV1().StatefulSets(p.address.Namespace).Get(ctx, p.address.SetName, metav1.GetOptions{})
	if err != nil {
		return 0, errors.Wrapf(err, "Fail to get statefulset %s/%s", p.address.Namespace, p.address.SetName)
	}
	if set.Spec.Replicas == nil {
		return 1, nil
	}
	return int(*set.Spec.Replicas), nil
}

// environment returns the resolved env of the statefulset container
// named like the statefulset
func (p *Provider) environment(ctx context.Context) (map[string]string, error) {
	set, err := p.client.AppsV1().StatefulSets(p.address.Namespace).Get(ctx, p.address.SetName, metav1.GetOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "Fail to get statefulset %s/%s", p.address.Namespace, p.address.SetName)
	}

	env := make(map[string]string)
	for _, container := range set.Spec.Template.Spec.Containers {
		if container.Name != p.address.SetName {
			continue
		}
		for _, item := range container.Env {
			value, err := p.lookupEnvValue(ctx, item)
			if err != nil {
				return nil, err
			}
			env[item.Name] = value
		}
		return env, nil
	}
	p.Logger.Warn().Msgf("No container named %s found in statefulset", p.address.SetName)
	return env, nil
}

// lookupEnvValue resolves secret and configmap references.
// The downward api is not supported and resolves to an empty string
func (p *Provider) lookupEnvValue(ctx context.Context, env corev1.EnvVar) (string, error) {
	if env.Value != "" || env.ValueFrom == nil {
		return env.Value, nil
	}

	switch from := env.ValueFrom; {
	case from.SecretKeyRef != nil:
		ref := from.SecretKeyRef
		secret, err := p.client.CoreV1().Secrets(p.address.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		if err != nil {
			if isOptional(ref.Optional) {
				return "", nil
			}
			return "", errors.Wrapf(err, "Fail to get secret %s for env %s", ref.Name, env.Name)
		}
		return string(secret.Data[ref.Key]), nil

	case from.ConfigMapKeyRef != nil:
		ref := from.ConfigMapKeyRef
		configMap, err := p.client.CoreV1().ConfigMaps(p.address.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		if err != nil {
			if isOptional(ref.Optional) {
				return "", nil
			}
			return "", errors.Wrapf(err, "Fail to get configmap %s for env %s", ref.Name, env.Name)
		}
		return configMap.Data[ref.Key], nil
	}
	return "", nil
}

func isOptional(optional *bool) bool {
	return optional != nil && *optional
}
