package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	"sigs.k8s.io/controller-runtime/pkg/client"

	sourcemapv1alpha1 "github.com/anvil-platform/sourcemap/api/v1alpha1"
	"github.com/anvil-platform/sourcemap/internal/manifest"
)

var (
	scheme = runtime.NewScheme()
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(sourcemapv1alpha1.AddToScheme(scheme))
}

func main() {
	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	} else {
		kubeconfig = os.Getenv("KUBECONFIG")
	}
	flag.StringVar(&kubeconfig, "kubeconfig", kubeconfig, "absolute path to the kubeconfig file")

	var numManifests int
	var concurrency int
	var namespace string
	var file string
	var timeout time.Duration

	flag.IntVar(&numManifests, "manifests", 10, "Number of DependencyManifests to create")
	flag.IntVar(&concurrency, "concurrency", 4, "Maximum number of manifests in flight")
	flag.StringVar(&namespace, "namespace", "default", "Namespace to create manifests in")
	flag.StringVar(&file, "f", "", "Manifest file providing the repositories and requirements (required)")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for each manifest to resolve")
	flag.Parse()

	if file == "" {
		log.Fatalf("-f is required")
	}
	doc, err := manifest.Load(file)
	if err != nil {
		log.Fatalf("Error loading manifest: %v", err)
	}
	if err := doc.Validate(); err != nil {
		log.Fatalf("Invalid manifest: %v", err)
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		log.Fatalf("Error building kubeconfig: %v", err)
	}

	k8sClient, err := client.New(config, client.Options{Scheme: scheme})
	if err != nil {
		log.Fatalf("Error creating client: %v", err)
	}

	ctx := context.Background()
	refs, err := ensureRepositories(ctx, k8sClient, namespace, doc)
	if err != nil {
		log.Fatalf("Error creating repositories: %v", err)
	}

	fmt.Printf("Starting load test: %d manifests in namespace %s (concurrency %d)\n", numManifests, namespace, concurrency)

	var mu sync.Mutex
	latencies := make([]time.Duration, 0, numManifests)
	phases := make(map[string]int)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < numManifests; i++ {
		id := i
		g.Go(func() error {
			name := fmt.Sprintf("load-test-manifest-%d-%d", time.Now().Unix(), id)
			m := &sourcemapv1alpha1.DependencyManifest{
				ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
				Spec: sourcemapv1alpha1.DependencyManifestSpec{
					Repositories: refs,
					Requirements: doc.Requirements,
					Strict:       doc.Strict,
				},
			}

			createStart := time.Now()
			if err := k8sClient.Create(gctx, m); err != nil {
				return fmt.Errorf("create manifest %s: %w", name, err)
			}

			phase, err := waitForPhase(gctx, k8sClient, client.ObjectKeyFromObject(m), timeout)
			if err != nil {
				fmt.Printf("Manifest %s: %v\n", name, err)
				return nil
			}
			latency := time.Since(createStart)
			fmt.Printf("Manifest %s %s in %v\n", name, phase, latency)

			mu.Lock()
			latencies = append(latencies, latency)
			phases[phase]++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Load test aborted: %v", err)
	}
	totalDuration := time.Since(start)

	if len(latencies) == 0 {
		fmt.Printf("Load test completed in %v. No manifests were resolved.\n", totalDuration)
		return
	}
	var totalLatency time.Duration
	for _, l := range latencies {
		totalLatency += l
	}
	avgLatency := totalLatency / time.Duration(len(latencies))
	fmt.Printf("Load test completed in %v. Avg resolution latency: %v. Phases: %v\n", totalDuration, avgLatency, phases)
}

// ensureRepositories creates the document's repositories that do not exist yet.
func ensureRepositories(ctx context.Context, c client.Client, namespace string, doc manifest.Document) ([]sourcemapv1alpha1.ObjectRef, error) {
	refs := make([]sourcemapv1alpha1.ObjectRef, 0, len(doc.Repositories))
	for _, cfg := range doc.Repositories {
		repo := &sourcemapv1alpha1.PackageRepository{
			ObjectMeta: metav1.ObjectMeta{Name: cfg.Name, Namespace: namespace},
			Spec:       cfg.PackageRepositorySpec,
		}
		if err := c.Create(ctx, repo); err != nil && !apierrors.IsAlreadyExists(err) {
			return nil, fmt.Errorf("create repository %s: %w", cfg.Name, err)
		}
		refs = append(refs, sourcemapv1alpha1.ObjectRef{Name: cfg.Name})
	}
	return refs, nil
}

func waitForPhase(ctx context.Context, c client.Client, key client.ObjectKey, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("timeout waiting for resolution")
		case <-time.After(1 * time.Second):
			var current sourcemapv1alpha1.DependencyManifest
			if err := c.Get(ctx, key, &current); err != nil {
				continue
			}
			if current.Status.Phase != "" {
				return current.Status.Phase, nil
			}
		}
	}
}
