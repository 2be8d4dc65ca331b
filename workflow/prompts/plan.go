// Package prompts provides the system prompts for generation calls and the
// deterministic fallback plan template. Prompts are plain functions
// returning markdown-structured instructions; the caller supplies all
// project context as user content.
package prompts

import (
	"fmt"
	"strings"
)

// Plan returns the system prompt for architectural plan generation. The
// section list is the canonical plan structure; every generated plan is
// expected to follow it.
func Plan() string {
	return `You are a software architect producing an architectural plan from business requirements. The user content contains the business requirements document, elicitation answers, and the chosen technology stack.

## Your Goal

Create a complete, implementation-ready architectural plan grounded in the provided requirements and technology choices. Do not invent requirements; where the input is silent, state the assumption you are making.

## Document Structure

Your plan MUST include these sections, in this order:

### Executive Summary (## heading)
- What the system does and for whom
- The headline architectural decisions

### Architecture Overview (## heading)
- Major components and their responsibilities
- How they communicate

### Technology Justification (## heading)
- Why each chosen technology fits the requirements
- Notable tradeoffs accepted

### Scalability (## heading)
- Expected load and growth path
- Scaling strategy per component

### Security (## heading)
- Authentication and authorization approach
- Data protection measures matched to the stated sensitivity

### Integration (## heading)
- Each external system and its integration pattern

### Data (## heading)
- Core entities and their relationships
- Storage layout and retention

### Deployment (## heading)
- Target environment topology
- Release and rollback process

### Workflow (## heading)
- Development and delivery workflow for the team

### Risks (## heading)
- Top technical and delivery risks with mitigations

### Phased Roadmap (## heading)
- Delivery phases with concrete milestones

### Success Metrics (## heading)
- Measurable criteria for the system and the rollout

## Writing Style

- Concrete and specific; name technologies, not categories
- Keep each section self-contained
- Use tables for enumerable facts, prose for reasoning
- Markdown only, no preamble before the first heading`
}

// FallbackPlan renders the deterministic template plan used when the
// generation call fails. It interpolates the same three context pieces the
// generation path uses, so a degraded plan still reflects the project's
// actual inputs.
func FallbackPlan(brdExcerpt string, elicitationLines []string, techStack string) string {
	answers := "No elicitation data provided."
	if len(elicitationLines) > 0 {
		answers = strings.Join(elicitationLines, "\n")
	}

	return fmt.Sprintf(`# Architectural Plan

> This plan was produced by the built-in template because the generation
> service was unavailable. Re-submit the technology stack to generate a
> full plan.

## Executive Summary

This plan outlines a standard layered architecture for the requirements
summarized below, using the selected technology stack throughout.

## Requirements Summary

%s

## Elicitation Answers

%s

## Technology Stack

%s

## Architecture Overview

A three-tier architecture: a stateless application tier implementing the
business workflows, a persistence tier on the selected database system,
and an edge tier terminating client traffic. Components communicate over
internal HTTP/gRPC with health checks at every boundary.

## Deployment

Deploy to the selected environment using infrastructure-as-code, one
environment per stage (dev, staging, production), with automated rollback
on failed health checks.

## Risks

- The generation service was unavailable when this plan was produced;
  domain-specific guidance is missing and should be regenerated.
- Template guidance may not reflect constraints implied but not stated in
  the requirements.

## Phased Roadmap

1. Foundation: project scaffolding, CI/CD, environments.
2. Core workflows: implement and test the primary business flows.
3. Integrations: connect the external systems identified above.
4. Hardening: load testing, security review, operational runbooks.

## Success Metrics

- All stated requirements traceable to implemented features.
- Production deployment through the automated pipeline.
- Error budget and latency targets defined and monitored.`,
		brdExcerpt, answers, techStack)
}
