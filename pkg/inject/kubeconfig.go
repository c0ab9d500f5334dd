package inject

import (
	"fmt"

	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
	"k8s.io/client-go/tools/clientcmd/api/latest"
	"sigs.k8s.io/yaml"
)

// EmitKubeconfig builds a client config naming server as
// https://<host>:<port>, embedding the CA and bearing the fixed token, the
// same clientcmdapi.Config construction the teacher's ConfigurationView
// uses for its in-cluster branch (pkg/kubernetes/configuration.go).
func EmitKubeconfig(host, port string, ca []byte) ([]byte, error) {
	cfg := clientcmdapi.NewConfig()
	cfg.Clusters["h2c"] = &clientcmdapi.Cluster{
		Server:                   fmt.Sprintf("https://%s:%s", host, port),
		CertificateAuthorityData: ca,
	}
	cfg.AuthInfos["h2c"] = &clientcmdapi.AuthInfo{
		Token: fixedToken,
	}
	cfg.Contexts["h2c"] = &clientcmdapi.Context{
		Cluster:  "h2c",
		AuthInfo: "h2c",
	}
	cfg.CurrentContext = "h2c"

	converted, err := latest.Scheme.ConvertToVersion(cfg, latest.ExternalVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to convert kubeconfig to external version: %w", err)
	}
	out, err := yaml.Marshal(converted)
	if err != nil {
		return nil, fmt.Errorf("failed to encode kubeconfig: %w", err)
	}
	return out, nil
}
