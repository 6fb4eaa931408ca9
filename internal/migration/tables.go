package migration

import (
	entitlementdomain "github.com/oakline/storefront/internal/entitlement/domain"
	guildcfgdomain "github.com/oakline/storefront/internal/guildconfig/domain"
	productdomain "github.com/oakline/storefront/internal/product/domain"
	purchasedomain "github.com/oakline/storefront/internal/purchase/domain"
	refunddomain "github.com/oakline/storefront/internal/refund/domain"
	ticketdomain "github.com/oakline/storefront/internal/ticket/domain"
)

func tables() []any {
	return []any{
		&guildcfgdomain.GuildConfig{},
		&productdomain.Product{},
		&purchasedomain.Purchase{},
		&entitlementdomain.Entitlement{},
		&ticketdomain.Ticket{},
		&refunddomain.RefundRequest{},
	}
}
