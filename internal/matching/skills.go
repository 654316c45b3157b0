package matching

import (
	"regexp"
	"strings"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

// Category groups skill patterns. Patterns are regular expressions matched
// between non-word characters of lowercased text, so "c++" and "c#" work too.
type Category struct {
	Name     string
	Patterns []string
}

// Dictionary is the fixed skill vocabulary.
var Dictionary = []Category{
	{Name: "programming", Patterns: []string{
		"python", "r", "java", "scala", "julia", `c\+\+`, "c#", "javascript",
		"typescript", "go", "golang", "rust", "sql", "bash", "shell", "matlab",
		"kotlin", "swift", "ruby", "php", "perl",
	}},
	{Name: "ml_frameworks", Patterns: []string{
		"tensorflow", "pytorch", "keras", "scikit-learn", "sklearn", "xgboost",
		"lightgbm", "catboost", "jax", "mxnet", "paddle", "huggingface",
		"transformers", "spacy", "nltk", "gensim", "fastai",
	}},
	{Name: "ml_concepts", Patterns: []string{
		"machine learning", "deep learning", "neural network", "cnn", "rnn",
		"lstm", "transformer", "attention", "bert", "gpt", "llm",
		"reinforcement learning", "supervised learning", "unsupervised",
		"computer vision", "nlp", "natural language", "speech recognition",
		"recommendation system", "time series", "anomaly detection",
	}},
	{Name: "data_tools", Patterns: []string{
		"pandas", "numpy", "scipy", "dask", "ray", "polars", "spark",
		"pyspark", "hadoop", "hive", "presto", "airflow", "dagster",
		"prefect", "dbt", "great expectations",
	}},
	{Name: "cloud", Patterns: []string{
		"aws", "amazon web services", "azure", "gcp", "google cloud",
		"sagemaker", "vertex ai", "azure ml", "databricks", "snowflake",
		"bigquery", "redshift", "s3", "ec2", "lambda",
	}},
	{Name: "mlops", Patterns: []string{
		"mlflow", "kubeflow", "mlops", "model deployment", "model serving",
		"docker", "kubernetes", "k8s", "ci/cd", "github actions", "jenkins",
		"terraform", "ansible", "model monitoring", "feature store",
	}},
	{Name: "databases", Patterns: []string{
		"postgresql", "postgres", "mysql", "mongodb", "redis", "cassandra",
		"elasticsearch", "neo4j", "pinecone", "weaviate", "milvus",
		"chromadb", "qdrant", "faiss",
	}},
	{Name: "tools", Patterns: []string{
		"git", "linux", "unix", "jupyter", "notebook", "vscode",
		"wandb", "weights & biases", "tensorboard", "grafana", "prometheus",
		"api", "rest", "graphql", "fastapi", "flask", "django",
	}},
}

type compiledSkill struct {
	name string
	re   *regexp.Regexp
}

var compiled = compileDictionary(Dictionary)

func compileDictionary(categories []Category) []compiledSkill {
	var out []compiledSkill
	seen := make(map[string]struct{})
	for _, c := range categories {
		for _, pattern := range c.Patterns {
			name := strings.ReplaceAll(pattern, `\`, "")
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, compiledSkill{
				name: name,
				re:   regexp.MustCompile(`(?:^|\W)` + pattern + `(?:\W|$)`),
			})
		}
	}
	return out
}

// ExtractSkills returns the dictionary skills mentioned in text, in
// dictionary order.
func ExtractSkills(text string) []string {
	text = strings.ToLower(jobs.Fold(text))
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var skills []string
	for _, s := range compiled {
		if s.re.MatchString(text) {
			skills = append(skills, s.name)
		}
	}
	return skills
}

// BuildProfile assembles the candidate profile from resume text, an optional
// experience level and configured skills. Resume skills come from the dictionary.
func BuildProfile(resume, level string, configured ...[]string) *jobs.Profile {
	sets := append([][]string{ExtractSkills(resume)}, configured...)
	return jobs.NewProfile(resume, level, sets...)
}
