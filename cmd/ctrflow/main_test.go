package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/ctrflow/pkg/config"
	"github.com/ajitpratap0/ctrflow/pkg/testutil"
)

type CLITestSuite struct {
	testutil.IntegrationTestSuite
	configPath string
	cfg        *config.Config
}

func TestCLISuite(t *testing.T) {
	testutil.IntegrationTest(t)
	suite.Run(t, new(CLITestSuite))
}

func (s *CLITestSuite) SetupSuite() {
	s.IntegrationTestSuite.SetupSuite()

	cfg := config.Default()
	cfg.Data.RawTrain = testutil.WriteRaw(s.T(), s.Path("train.raw.jsonl.gz"), testutil.ClickLog(200))
	cfg.Data.RawTest = testutil.WriteRaw(s.T(), s.Path("test.raw.jsonl"), testutil.ClickLog(30))
	cfg.Data.SparseTrain = s.Path("train.sparse.jsonl.zst")
	cfg.Data.SparseTest = s.Path("test.sparse.jsonl.gz")
	cfg.Data.Pipeline = s.Path("pipeline.json")
	cfg.Data.Model = s.Path("model.json")
	cfg.Data.Submission = s.Path("submission.csv")
	cfg.Data.Categories = s.CreateTempFile("categories.csv", []byte(
		"category_id,level,parent_category_id\n1,1,\n2,2,1\n3,2,1\n4,2,9\n"))
	cfg.Learner.HistoryCapacity = 10_000
	cfg.Learner.ProgressEvery = 50
	cfg.Evaluation.Folds = 3
	cfg.Evaluation.CurveSizes = []int{40, 20}
	cfg.Evaluation.TopFeatures = 5
	cfg.Logging.Level = "warn"

	s.configPath = s.Path("ctrflow.yaml")
	s.Require().NoError(config.Save(s.configPath, cfg))
	s.cfg = cfg
}

func (s *CLITestSuite) execute(args ...string) string {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	s.Require().NoError(root.ExecuteContext(s.Context()), out.String())
	return out.String()
}

func (s *CLITestSuite) TestVersion() {
	out := s.execute("version")
	s.Contains(out, "ctrflow v"+version)
	s.Contains(out, "onehot")
}

func (s *CLITestSuite) TestConfigInit() {
	path := s.Path("init.yaml")
	s.Contains(s.execute("config", "init", path), path)

	loaded, err := config.Load(path)
	s.Require().NoError(err)
	s.Equal(config.Default().Learner, loaded.Learner)

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "init", path})
	s.Error(root.ExecuteContext(s.Context()), "existing files are kept")
}

func (s *CLITestSuite) TestRunThenSubmit() {
	out := s.execute("run", "--config", s.configPath)
	s.Contains(out, "Progressive log-loss")
	s.Contains(out, "WEIGHT")
	s.Contains(out, "CV 3/3 score")
	s.Contains(out, "CV mean")

	for _, path := range []string{s.cfg.Data.Pipeline, s.cfg.Data.SparseTrain, s.cfg.Data.SparseTest, s.cfg.Data.Model} {
		_, err := os.Stat(path)
		s.NoError(err, path)
	}

	out = s.execute("curve", "--config", s.configPath)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	s.Require().Len(lines, 3)
	s.Contains(lines[1], "20")
	s.Contains(lines[2], "40")

	s.Contains(s.execute("submit", "--config", s.configPath), "Wrote 30 predictions")
	submission, err := os.ReadFile(s.cfg.Data.Submission)
	s.Require().NoError(err)
	rows := strings.Split(strings.TrimSpace(string(submission)), "\n")
	s.Len(rows, 31)
	s.Equal("ID,IsClick", rows[0])
}

func (s *CLITestSuite) TestImportTSV() {
	input := s.CreateTempFile("export.tsv", []byte(
		"ad_id\tis_click\tprice\tad_params\n"+
			"10\t0\t12.5\t{\"5\": 1}\n"+
			"11\t1\t\t\n"))
	output := s.Path("imported.raw.jsonl")

	out := s.execute("import-tsv", "--config", s.configPath, "--input", input, "--output", output,
		"--type", "price=float", "--type", "ad_params=json")
	s.Contains(out, "Imported 2 records")

	content, err := os.ReadFile(output)
	s.Require().NoError(err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	s.Require().Len(lines, 2)
	s.True(strings.HasPrefix(lines[0], `[["is_click",0]`), lines[0])
	s.Contains(lines[1], `["price",null]`)
}
