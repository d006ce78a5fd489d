package customer

import (
	"github.com/smallbiznis/customerdir/internal/customer/idgen"
	"github.com/smallbiznis/customerdir/internal/customer/repository"
	"github.com/smallbiznis/customerdir/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(idgen.Provide),
	fx.Provide(service.New),
)
