package components

import (
	"merchant-backend/internal/infra/sqlc"
	"merchant-backend/internal/infra/uow"
	"merchant-backend/internal/usecase/shared"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var PersistenceModule = fx.Module("persistence",
	fx.Provide(
		NewSQLQueries,
		NewUoWPool,
		fx.Annotate(
			uow.NewPostgresUoW,
			fx.As(new(shared.UnitOfWork)),
		),
	),
)

func NewSQLQueries(_ *pgxpool.Pool) *sqlc.Queries {
	return sqlc.New()
}

func NewUoWPool(pool *pgxpool.Pool) uow.Pool {
	return pool
}
