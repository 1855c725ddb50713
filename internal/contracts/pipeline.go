package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, job 이름, DB row에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S0 (독립 실행)   S1 → S2 → S3
//   Benchmark        Collection  Ranking  Scoring

// Stage represents a pipeline stage
type Stage string

const (
	// StageBenchmark S0: 벤치마크 지수 가중 수익률
	// 책임: 지수별 1/3/6/9/12개월 수익률, IBD 가중 성과 저장
	// 위치: internal/s0_benchmark/
	StageBenchmark Stage = "S0_BENCHMARK"

	// StageCollection S1: 종목별 시세/재무 수집 및 RS 원점수
	// 책임: quote + fundamentals + 이력 수집, RS 계산, 부분 레코드 UPSERT
	// 위치: internal/s1_collection/
	StageCollection Stage = "S1_COLLECTION"

	// StageRanking S2: 전체 모집단 RS 백분위
	// 책임: 날짜별 RS 전체 조회, 1~99 백분위 일괄 갱신
	// 위치: internal/s2_ranking/
	StageRanking Stage = "S2_RANKING"

	// StageScoring S3: CAN SLIM 종합 점수
	// 책임: C/A/N/S/L/I/M 하위 점수와 종합 점수 일괄 갱신
	// 위치: internal/s3_scoring/
	StageScoring Stage = "S3_SCORING"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageBenchmark:
		return "S0"
	case StageCollection:
		return "S1"
	case StageRanking:
		return "S2"
	case StageScoring:
		return "S3"
	default:
		return "UNKNOWN"
	}
}

// JobName is the JobExecution name recorded for the stage
func (s Stage) JobName() string {
	switch s {
	case StageBenchmark:
		return "benchmark"
	case StageCollection:
		return "collection"
	case StageRanking:
		return "ranking"
	case StageScoring:
		return "scoring"
	default:
		return "unknown"
	}
}

// Description returns a human readable description of the stage
func (s Stage) Description() string {
	switch s {
	case StageBenchmark:
		return "benchmark weighted performance"
	case StageCollection:
		return "quote/fundamentals collection and raw relative strength"
	case StageRanking:
		return "population-wide RS percentile"
	case StageScoring:
		return "CAN SLIM sub-scores and composite"
	default:
		return "unknown"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageBenchmark,
		StageCollection,
		StageRanking,
		StageScoring,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// Flow names
const (
	FlowScreenerRefresh  = "screener-refresh"
	FlowBenchmarkRefresh = "benchmark-refresh"
)
