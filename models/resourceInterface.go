package models

func (v Vendor) GetOrganizationId() string {
	return v.OrganizationId
}

func (c CatalogItem) GetOrganizationId() string {
	return c.OrganizationId
}

func (p PendingItem) GetOrganizationId() string {
	return p.OrganizationId
}

func (b ImportBatch) GetOrganizationId() string {
	return b.OrganizationId
}

func (p PriceHistory) GetOrganizationId() string {
	return p.OrganizationId
}

func (h History) GetOrganizationId() string {
	return h.OrganizationId
}

func (u User) GetOrganizationId() string {
	return u.OrganizationId
}

func (r OutboxEventRecord) GetOrganizationId() string {
	return r.OrganizationId
}
