package mock

//go:generate minimock -g -i github.com/docvault/ingest-backend/pkg/repository.Repository -o ./ -s "_mock.gen.go"
//go:generate minimock -g -i github.com/docvault/ingest-backend/pkg/milvus.MilvusClientI -o ./ -s "_mock.gen.go"
//go:generate minimock -g -i github.com/docvault/ingest-backend/internal/ai.Provider -o ./ -s "_mock.gen.go"
