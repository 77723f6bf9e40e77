package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions: versioned stage templates per (type, department)
			CREATE TABLE workflow_definitions (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				workflow_type VARCHAR(50) NOT NULL,
				department VARCHAR(50) NOT NULL,
				stages JSONB NOT NULL,
				version INTEGER NOT NULL,
				active BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_definitions_type_department ON workflow_definitions(workflow_type, department);
			CREATE INDEX idx_definitions_active ON workflow_definitions(active);

			-- Workflow instances: one row per in-flight or completed request
			CREATE TABLE workflow_instances (
				id UUID PRIMARY KEY,
				workflow_type VARCHAR(50) NOT NULL,
				definition_id UUID NOT NULL,
				definition_version INTEGER NOT NULL,
				requester_id VARCHAR(255) NOT NULL,
				current_approver_id VARCHAR(255),
				status VARCHAR(50) NOT NULL,
				payload JSONB,
				context JSONB,
				chain JSONB NOT NULL DEFAULT '[]',
				history JSONB NOT NULL DEFAULT '[]',
				current_stage INTEGER NOT NULL DEFAULT 0,
				total_stages INTEGER NOT NULL,
				revision BIGINT NOT NULL DEFAULT 1,
				metadata JSONB,
				completed_at TIMESTAMP WITH TIME ZONE,
				cancelled_by VARCHAR(255),
				cancel_reason TEXT,
				cancelled_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_instances_requester ON workflow_instances(requester_id);
			CREATE INDEX idx_instances_status ON workflow_instances(status);
			CREATE INDEX idx_instances_current_approver ON workflow_instances(current_approver_id);
			CREATE INDEX idx_instances_created_at ON workflow_instances(created_at);

			-- Delegations: time-bounded approver substitutions
			CREATE TABLE delegations (
				id UUID PRIMARY KEY,
				delegator_id VARCHAR(255) NOT NULL,
				delegate_id VARCHAR(255) NOT NULL,
				workflow_types JSONB NOT NULL,
				start_date TIMESTAMP WITH TIME ZONE NOT NULL,
				end_date TIMESTAMP WITH TIME ZONE NOT NULL,
				active BOOLEAN NOT NULL DEFAULT true,
				revoked_by VARCHAR(255),
				revoked_at TIMESTAMP WITH TIME ZONE,
				constraints JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_delegations_delegator ON delegations(delegator_id);
			CREATE INDEX idx_delegations_delegate ON delegations(delegate_id);
			CREATE INDEX idx_delegations_active ON delegations(active);

			-- Grade approval policies: one row per grade code
			CREATE TABLE grade_policies (
				grade_code VARCHAR(20) PRIMARY KEY,
				max_approval_level VARCHAR(20) NOT NULL,
				type_overrides JSONB,
				thresholds JSONB,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`,
	}
}
